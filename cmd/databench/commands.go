package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type commandKind int

const (
	cmdNone commandKind = iota
	cmdEmit
	cmdClick
	cmdLog
	cmdStatus
	cmdHelp
	cmdQuit
)

// command is one parsed input line.
type command struct {
	kind   commandKind
	signal string // cmdEmit
	load   any    // cmdEmit
	action string // cmdClick
}

var errUnknownCommand = errors.New("unknown command")

// parseLine reads "signal [json]" as an emit and ":name [arg]" as a
// client command. Blank lines and lines starting with # parse as cmdNone.
func parseLine(line string) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return command{kind: cmdNone}, nil
	}

	head, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	if strings.HasPrefix(head, ":") {
		switch head {
		case ":q", ":quit":
			return command{kind: cmdQuit}, nil
		case ":log":
			return command{kind: cmdLog}, nil
		case ":status":
			return command{kind: cmdStatus}, nil
		case ":help":
			return command{kind: cmdHelp}, nil
		case ":click":
			if rest == "" {
				return command{}, errors.New(":click needs an action name")
			}
			return command{kind: cmdClick, action: rest}, nil
		}
		return command{}, fmt.Errorf("%w %s", errUnknownCommand, head)
	}

	cmd := command{kind: cmdEmit, signal: head}
	if rest == "" {
		return cmd, nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(rest)))
	dec.UseNumber()
	if err := dec.Decode(&cmd.load); err != nil {
		return command{}, fmt.Errorf("load for %s is not JSON: %w", head, err)
	}
	if dec.More() {
		return command{}, fmt.Errorf("load for %s has trailing data", head)
	}
	return cmd, nil
}

const helpText = `commands:
  <signal> [json]   emit signal with an optional JSON load
  :click <action>   click a --button and track its process
  :log              show recent log lines
  :status           show connection alerts
  :quit             disconnect and exit`
