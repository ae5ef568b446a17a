/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"log"
	"strings"
	"time"
)

// errorKind names a recoverable game-level failure. Kinds are sent
// verbatim on the wire in error acknowledgment frames.
type errorKind string

const (
	errNameTaken         errorKind = "NameTaken"
	errNotEnoughPlayers  errorKind = "NotEnoughPlayers"
	errInvalidState      errorKind = "InvalidState"
	errInvalidSubmission errorKind = "InvalidSubmission"
	errNotJudge          errorKind = "NotJudge"
	errUnknownSubmitter  errorKind = "UnknownSubmitter"
	errRoomNotFound      errorKind = "RoomNotFound"
	errDeckExhausted     errorKind = "DeckExhausted"
)

// gameError rejects a single action without changing room state. It is
// reported only to the originating connection, except DeckExhausted,
// which is broadcast to the whole room as a stalled-round fault.
type gameError struct {
	kind errorKind
	msg  string
}

func (e *gameError) Error() string {
	return e.msg
}

func errf(kind errorKind, format string, args ...any) *gameError {
	return &gameError{
		kind: kind,
		msg:  fmt.Sprintf(format, args...),
	}
}

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
