package invoice

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// NumberGenerator issues human-facing invoice numbers
type NumberGenerator interface {
	Next() string
}

// SnowflakeNumbers issues time-ordered invoice numbers that stay unique across nodes
type SnowflakeNumbers struct {
	node *snowflake.Node
}

// NewSnowflakeNumbers creates a generator for one node. node must be in [0, 1023].
func NewSnowflakeNumbers(node int64) (*SnowflakeNumbers, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, fmt.Errorf("creating snowflake node %d: %w", node, err)
	}
	return &SnowflakeNumbers{node: n}, nil
}

func (s *SnowflakeNumbers) Next() string {
	return "INV-" + s.node.Generate().String()
}
