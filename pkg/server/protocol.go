// Package server embeds the graph engine in a small text keyspace
// server. Clients speak a line protocol: one command per line, fields
// whitespace-separated with single- or double-quoted strings for
// arguments containing spaces. Commands are dispatched to the engine;
// query results render as a (header, rows, statistics) block.
//
// Supported commands: GRAPH.QUERY, GRAPH.RO_QUERY, GRAPH.EXPLAIN,
// GRAPH.PROFILE, GRAPH.DELETE, GRAPH.LIST, GRAPH.INDEX, PING, AUTH,
// SAVE.
package server

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/tosone/falkordb/pkg/datatypes"
	"github.com/tosone/falkordb/pkg/plan"
)

// Command is one parsed client request.
type Command struct {
	Name string
	Args []string
}

// ErrEmptyCommand rejects blank input lines.
var ErrEmptyCommand = errors.New("server: empty command")

// ParseCommand splits a raw protocol line into a command name and
// arguments. Quoting with ' or " keeps spaces inside one argument.
func ParseCommand(raw string) (*Command, error) {
	raw = strings.TrimRight(raw, "\r\n")

	var (
		fields  []string
		cur     strings.Builder
		quote   rune
		inField bool
	)
	flush := func() {
		if inField {
			fields = append(fields, cur.String())
			cur.Reset()
			inField = false
		}
	}
	for _, r := range raw {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inField = true
		case r == ' ' || r == '\t':
			flush()
		default:
			cur.WriteRune(r)
			inField = true
		}
	}
	if quote != 0 {
		return nil, errors.New("server: unterminated quote")
	}
	flush()

	if len(fields) == 0 {
		return nil, ErrEmptyCommand
	}
	return &Command{
		Name: strings.ToUpper(fields[0]),
		Args: fields[1:],
	}, nil
}

// ReplyKind tags a Reply.
type ReplyKind int

const (
	// ReplyStatus is a one-line acknowledgement.
	ReplyStatus ReplyKind = iota
	// ReplyError is a one-line error.
	ReplyError
	// ReplyResult carries a query result set.
	ReplyResult
	// ReplyText carries preformatted multi-line text (EXPLAIN output).
	ReplyText
	// ReplyList carries a list of strings.
	ReplyList
)

// Reply is the structured server response, rendered to the wire by
// Render.
type Reply struct {
	Kind   ReplyKind
	Status string
	Err    error
	Result *plan.ResultSet
	Text   string
	List   []string
}

func statusReply(s string) Reply { return Reply{Kind: ReplyStatus, Status: s} }

func errorReply(err error) Reply { return Reply{Kind: ReplyError, Err: err} }

func resultReply(rs *plan.ResultSet) Reply { return Reply{Kind: ReplyResult, Result: rs} }

func textReply(s string) Reply { return Reply{Kind: ReplyText, Text: s} }

func listReply(l []string) Reply { return Reply{Kind: ReplyList, List: l} }

// Render serializes the reply. Every reply ends with a blank line so
// clients can frame responses without counting.
func (r Reply) Render() string {
	var sb strings.Builder
	switch r.Kind {
	case ReplyStatus:
		sb.WriteString("+")
		sb.WriteString(r.Status)
		sb.WriteString("\n")
	case ReplyError:
		sb.WriteString("-ERR ")
		sb.WriteString(r.Err.Error())
		sb.WriteString("\n")
	case ReplyText:
		sb.WriteString(r.Text)
		if !strings.HasSuffix(r.Text, "\n") {
			sb.WriteString("\n")
		}
	case ReplyList:
		for _, item := range r.List {
			sb.WriteString(item)
			sb.WriteString("\n")
		}
	case ReplyResult:
		rs := r.Result
		sb.WriteString(strings.Join(rs.Columns, "|"))
		sb.WriteString("\n")
		for _, row := range rs.Rows {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = renderValue(v)
			}
			sb.WriteString(strings.Join(cells, "|"))
			sb.WriteString("\n")
		}
		writeStats(&sb, rs)
	}
	sb.WriteString("\n")
	return sb.String()
}

func renderValue(v datatypes.Value) string {
	if v.Kind() == datatypes.TypeString {
		return v.Str()
	}
	return v.String()
}

func writeStats(sb *strings.Builder, rs *plan.ResultSet) {
	s := rs.Stats
	if s.NodesCreated > 0 {
		fmt.Fprintf(sb, "Nodes created: %d\n", s.NodesCreated)
	}
	if s.NodesDeleted > 0 {
		fmt.Fprintf(sb, "Nodes deleted: %d\n", s.NodesDeleted)
	}
	if s.RelationshipsCreated > 0 {
		fmt.Fprintf(sb, "Relationships created: %d\n", s.RelationshipsCreated)
	}
	if s.RelationshipsDeleted > 0 {
		fmt.Fprintf(sb, "Relationships deleted: %d\n", s.RelationshipsDeleted)
	}
	if s.PropertiesSet > 0 {
		fmt.Fprintf(sb, "Properties set: %d\n", s.PropertiesSet)
	}
	fmt.Fprintf(sb, "Query internal execution time: %.6f milliseconds\n",
		float64(s.ExecutionTime.Microseconds())/1000.0)
}
