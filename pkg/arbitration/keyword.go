package arbitration

import (
	"github.com/gezibash/arc-node/internal/cel"
)

var keywordKnownKeys = map[string]bool{
	"priority":    true,
	"scope":       true,
	"onChange":    true,
	"connections": true,
	"participant": true,
}

func compileKeywordFilter(expr string) (*cel.Filter, error) {
	return cel.Compile(expr, keywordKnownKeys)
}
