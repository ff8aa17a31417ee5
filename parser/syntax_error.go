package parser

import (
	"fmt"

	"github.com/antlr4-go/antlr/v4"
)

type errorListener struct {
	*antlr.DefaultErrorListener // Embed default which ensures we fit the interface
	errors                      []error
}

func (e *errorListener) SyntaxError(recognizer antlr.Recognizer, offendingSymbol interface{}, line, column int, msg string, ex antlr.RecognitionException) {
	e.errors = append(e.errors, fmt.Errorf("%d:%d: %s", line, column, msg))
}
