// Package idgen provides process-wide snowflake id generation for database
// rows (audit log entries and the like).
package idgen

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node     *snowflake.Node
	initOnce sync.Once
)

// Setup initializes the generator with the configured node id. Safe to call
// more than once; only the first call wins.
func Setup(nodeID int64) error {
	var err error
	initOnce.Do(func() {
		node, err = snowflake.NewNode(nodeID % 1024)
	})
	return err
}

// NextID returns a new snowflake id. Setup(0) is applied implicitly if the
// generator was never configured.
func NextID() int64 {
	if node == nil {
		_ = Setup(0)
	}
	return node.Generate().Int64()
}
