package embedded

import (
	_ "embed"
)

// StylesYAML is the built-in electronic music style catalogue
//
//go:embed data/styles.yaml
var StylesYAML []byte
