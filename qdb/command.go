package qdb

import (
	"fmt"

	"github.com/kwonwoo078/presto/pkg/storelog"
)

// command is a reversible in-memory mutation.
type command interface {
	do()
	undo()
}

type putCommand[T any] struct {
	m       map[string]T
	key     string
	value   T
	prev    T
	present bool
}

func newPutCommand[T any](m map[string]T, key string, value T) *putCommand[T] {
	return &putCommand[T]{m: m, key: key, value: value}
}

func (c *putCommand[T]) do() {
	c.prev, c.present = c.m[c.key]
	c.m[c.key] = c.value
}

func (c *putCommand[T]) undo() {
	if !c.present {
		delete(c.m, c.key)
		return
	}
	c.m[c.key] = c.prev
}

// executeCommands applies commands and persists the result with saver. On a
// save failure every command is reverted in reverse order.
func executeCommands(saver func() error, commands ...command) error {
	for _, c := range commands {
		c.do()
	}
	err := saver()
	if err == nil {
		return nil
	}

	storelog.Zero.Info().Err(err).Msg("memqdb: undo commands")
	for i := len(commands) - 1; i >= 0; i-- {
		commands[i].undo()
	}
	return fmt.Errorf("memqdb: persist state: %w", err)
}
