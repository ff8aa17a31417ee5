package parser

// ANTLR_BIN is set by Nix during the build
//go:generate bash -c "$ANTLR_BIN -Dlanguage=Go -no-visitor -package parser *.g4"
