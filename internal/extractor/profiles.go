package extractor

const cStyleNonDecl = `^\s*(?:return|new|else|if|for|foreach|while|switch|catch|throw|case|do|try|await|yield|using|lock|typeof|sizeof|delete|function)\b`

func builtinProfiles() []*Profile {
	return []*Profile{
		goProfile(),
		pythonProfile(),
		javaProfile(),
		csharpProfile(),
		javascriptProfile(),
		delphiProfile(),
	}
}

func goProfile() *Profile {
	return &Profile{
		Language:   "go",
		Extensions: []string{".go"},
		Matchers: []Matcher{
			MustPattern(KindFunction, `^func\s+(?:\(\s*(?:\w+\s+)?\*?(?P<class>\w+)(?:\[[^\]]*\])?\s*\)\s*)?(?P<name>\w+)\s*[\[(]`),
			MustPattern(KindClass, `^type\s+(?P<name>\w+)(?:\[[^\]]*\])?\s+(?:struct|interface)\b`),
		},
		Block:             BlockBraces,
		LineComment:       "//",
		BlockCommentOpen:  "/*",
		BlockCommentClose: "*/",
		StringDelims:      []string{`"`, "`"},
		Reserved: []string{
			"if", "for", "switch", "select", "go", "defer", "return", "func", "range",
			"map", "chan", "struct", "interface", "type",
		},
		Builtins: []string{
			"make", "new", "len", "cap", "append", "panic", "recover", "print", "println",
			"copy", "delete", "close", "complex", "real", "imag", "min", "max", "clear",
			"string", "int", "int8", "int16", "int32", "int64", "uint", "uint8", "uint16",
			"uint32", "uint64", "uintptr", "byte", "rune", "float32", "float64", "bool",
			"error", "any",
		},
	}
}

func pythonProfile() *Profile {
	return &Profile{
		Language:   "python",
		Extensions: []string{".py"},
		Matchers: []Matcher{
			MustPattern(KindFunction, `^[ \t]*(?:async\s+)?def\s+(?P<name>\w+)\s*\(`),
			MustPattern(KindClass, `^[ \t]*class\s+(?P<name>\w+)`),
		},
		Block:             BlockIndent,
		NestedMembers:     true,
		Preamble:          true,
		LineComment:       "#",
		BlockCommentOpen:  `"""`,
		BlockCommentClose: `"""`,
		StringDelims:      []string{`"`, `'`},
		Reserved: []string{
			"if", "elif", "for", "while", "with", "return", "yield", "lambda", "not", "and",
			"or", "in", "is", "assert", "del", "except", "raise",
		},
		Builtins: []string{
			"print", "len", "range", "str", "int", "float", "bool", "dict", "list", "set",
			"tuple", "isinstance", "issubclass", "super", "type", "open", "enumerate", "zip",
			"map", "filter", "sorted", "reversed", "min", "max", "sum", "any", "all",
			"getattr", "setattr", "hasattr", "repr", "iter", "next", "format", "self", "cls",
			"object",
		},
	}
}

func javaProfile() *Profile {
	return &Profile{
		Language:   "java",
		Extensions: []string{".java"},
		Matchers: []Matcher{
			MustPattern(KindClass, `^\s*(?:(?:public|private|protected|static|final|abstract|sealed|non-sealed|strictfp)\s+)*(?:class|interface|enum|record)\s+(?P<name>\w+)`),
			MustPattern(KindFunction, `^\s*(?:@\w+(?:\([^)]*\))?\s+)*(?:(?:public|private|protected|static|final|abstract|synchronized|native|default|strictfp)\s+)*(?:<[^>]+>\s+)?[\w.$<>\[\],?]+\s+(?P<name>[A-Za-z_$][\w$]*)\s*\([^;]*$`).Rejecting(cStyleNonDecl),
			MustPattern(KindFunction, `^\s*(?:public|private|protected)\s+(?P<name>[A-Z]\w*)\s*\([^;]*$`),
		},
		Block:             BlockBraces,
		NestedMembers:     true,
		LineComment:       "//",
		BlockCommentOpen:  "/*",
		BlockCommentClose: "*/",
		StringDelims:      []string{`"`, `'`},
		Reserved: []string{
			"if", "for", "while", "switch", "catch", "synchronized", "return", "new", "throw",
			"super", "this", "assert", "instanceof", "try", "else", "case", "default",
		},
		Builtins: []string{"String", "Integer", "Long", "Boolean", "Object", "System"},
	}
}

func csharpProfile() *Profile {
	return &Profile{
		Language:   "csharp",
		Extensions: []string{".cs"},
		Matchers: []Matcher{
			MustPattern(KindClass, `^\s*(?:\[[^\]]*\]\s*)*(?:(?:public|private|protected|internal|static|sealed|abstract|partial|readonly)\s+)*(?:class|interface|struct|record|enum)\s+(?P<name>\w+)`),
			MustPattern(KindFunction, `^\s*(?:\[[^\]]*\]\s*)*(?:(?:public|private|protected|internal|static|virtual|override|abstract|async|sealed|extern|unsafe|new|partial)\s+)*[\w.<>\[\],?]+\s+(?P<name>\w+)\s*(?:<[^>]+>)?\s*\([^;]*$`).Rejecting(cStyleNonDecl),
			MustPattern(KindFunction, `^\s*(?:public|private|protected|internal|static)\s+(?P<name>[A-Z]\w*)\s*\([^;]*$`),
		},
		Block:             BlockBraces,
		NestedMembers:     true,
		LineComment:       "//",
		BlockCommentOpen:  "/*",
		BlockCommentClose: "*/",
		StringDelims:      []string{`"`, `'`},
		Reserved: []string{
			"if", "for", "foreach", "while", "switch", "catch", "lock", "using", "return",
			"new", "throw", "base", "this", "typeof", "nameof", "sizeof", "default", "await",
			"else", "case", "var",
		},
		Builtins: []string{"get", "set", "string", "int", "bool", "object", "Console"},
	}
}

func javascriptProfile() *Profile {
	return &Profile{
		Language:   "javascript",
		Extensions: []string{".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx"},
		Matchers: []Matcher{
			MustPattern(KindClass, `^\s*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+(?P<name>[\w$]+)`),
			MustPattern(KindFunction, `^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*(?P<name>[\w$]+)\s*[(<]`),
			MustPattern(KindFunction, `^\s*(?:export\s+)?(?:const|let|var)\s+(?P<name>[\w$]+)\s*(?::[^=]+)?=\s*(?:async\s+)?(?:function\b|\([^)]*\)\s*(?::[^=]+)?=>|[\w$]+\s*=>)`),
			MustPattern(KindFunction, `^\s*(?:(?:public|private|protected|static|async|readonly|override|get|set)\s+)*(?P<name>[\w$]+)\s*\([^;]*\)\s*(?::\s*[^{=]+)?\{\s*$`).Rejecting(cStyleNonDecl),
		},
		Block:             BlockBraces,
		NestedMembers:     true,
		LineComment:       "//",
		BlockCommentOpen:  "/*",
		BlockCommentClose: "*/",
		StringDelims:      []string{`"`, `'`, "`"},
		Reserved: []string{
			"if", "for", "while", "switch", "catch", "return", "new", "throw", "typeof",
			"function", "super", "this", "await", "import", "else", "case",
		},
		SkipTokens: []string{
			"constructor", "require", "console", "parseInt", "parseFloat", "String",
			"Number", "Boolean", "Array", "Object", "Promise", "setTimeout", "setInterval",
		},
	}
}

func delphiProfile() *Profile {
	return &Profile{
		Language:   "delphi",
		Extensions: []string{".pas", ".dpr", ".dpk", ".inc"},
		Matchers: []Matcher{
			MustPattern(KindFunction, `(?i)^\s*(?:class\s+)?(?:function|procedure)\s+(?:(?P<class>\w+)\.)?(?P<name>\w+)`),
			MustPattern(KindFunction, `(?i)^\s*(?:constructor|destructor)\s+(?:(?P<class>\w+)\.)?(?P<name>\w+)`),
			MustPattern(KindClass, `(?i)^\s*(?P<name>\w+)\s*=\s*class\b(?:\s*\([^)]*\))?\s*$`),
		},
		Block:              BlockNextDecl,
		Preamble:           true,
		ForwardDeclKeyword: "implementation",
		BareIdentifiers:    true,
		CaseInsensitive:    true,
		LineComment:        "//",
		BlockCommentOpen:   "{",
		BlockCommentClose:  "}",
		StringDelims:       []string{`'`},
		SpecialFiles: map[string]FileParser{
			".dfm": ParseForm,
		},
		Reserved: []string{
			"begin", "end", "if", "then", "else", "for", "to", "downto", "do", "while",
			"repeat", "until", "case", "of", "with", "try", "except", "finally", "raise",
			"on", "var", "const", "type", "procedure", "function", "constructor",
			"destructor", "inherited", "nil", "true", "false", "and", "or", "not", "xor",
			"div", "mod", "shl", "shr", "in", "is", "as", "self", "result", "exit",
			"break", "continue", "array", "record", "class", "object", "string",
			"interface", "implementation", "uses", "unit", "program", "library",
			"initialization", "finalization", "property", "published",
			"private", "protected", "public", "override", "virtual", "overload",
		},
		Builtins: []string{
			"integer", "boolean", "cardinal", "double", "char", "pchar", "variant",
			"read", "write", "assigned", "length", "setlength", "inc", "dec", "ord",
			"chr", "high", "low",
		},
		SkipTokens: []string{
			"format", "inttostr", "strtoint", "showmessage", "freeandnil", "create",
			"free", "sender", "tobject", "application", "screen",
		},
	}
}
