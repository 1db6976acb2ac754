package server

import (
	"bufio"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tosone/falkordb/pkg/config"
	"github.com/tosone/falkordb/pkg/index"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.DataDir = "" // in-memory snapshot store
	if mutate != nil {
		mutate(cfg)
	}
	s, err := New(cfg, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func dispatch(t *testing.T, s *Server, sess *Session, line string) Reply {
	t.Helper()
	cmd, err := ParseCommand(line)
	require.NoError(t, err)
	return s.Dispatch(sess, cmd)
}

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand(`GRAPH.QUERY social "MATCH (n:L) RETURN n.id" n=3` + "\r\n")
	require.NoError(t, err)
	assert.Equal(t, "GRAPH.QUERY", cmd.Name)
	require.Len(t, cmd.Args, 3)
	assert.Equal(t, "social", cmd.Args[0])
	assert.Equal(t, "MATCH (n:L) RETURN n.id", cmd.Args[1])

	_, err = ParseCommand("   \r\n")
	assert.ErrorIs(t, err, ErrEmptyCommand)

	_, err = ParseCommand(`PING "unterminated`)
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	s := newTestServer(t, nil)
	r := dispatch(t, s, &Session{}, "PING")
	assert.Equal(t, ReplyStatus, r.Kind)
	assert.Equal(t, "PONG", r.Status)
}

func TestAuthFlow(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("sesame"), bcrypt.MinCost)
	require.NoError(t, err)
	s := newTestServer(t, func(c *config.Config) {
		c.Server.RequirePass = string(hash)
	})
	sess := &Session{}

	r := dispatch(t, s, sess, "PING")
	require.Equal(t, ReplyError, r.Kind)
	assert.ErrorIs(t, r.Err, ErrAuthRequired)

	r = dispatch(t, s, sess, "AUTH wrong")
	require.Equal(t, ReplyError, r.Kind)
	assert.ErrorIs(t, r.Err, ErrInvalidPassword)

	r = dispatch(t, s, sess, "AUTH sesame")
	require.Equal(t, ReplyStatus, r.Kind)

	r = dispatch(t, s, sess, "PING")
	assert.Equal(t, ReplyStatus, r.Kind)
}

// seedSocial creates nodes 0..9 labeled :L on even IDs via the command
// surface.
func seedSocial(t *testing.T, s *Server) {
	t.Helper()
	sess := &Session{}
	for i := 0; i < 10; i++ {
		q := `CREATE (n {id: ` + strconv.Itoa(i) + `})`
		if i%2 == 0 {
			q = `CREATE (n:L {id: ` + strconv.Itoa(i) + `})`
		}
		r := dispatch(t, s, sess, `GRAPH.QUERY social "`+q+`"`)
		require.Equal(t, ReplyResult, r.Kind, "seed %d: %v", i, r.Err)
		require.Equal(t, uint64(1), r.Result.Stats.NodesCreated)
	}
}

func TestQueryEndToEnd(t *testing.T) {
	s := newTestServer(t, nil)
	seedSocial(t, s)
	sess := &Session{}

	r := dispatch(t, s, sess,
		`GRAPH.QUERY social "MATCH (n:L) WHERE id(n) < 6 RETURN n.id ORDER BY n.id"`)
	require.Equal(t, ReplyResult, r.Kind, "%v", r.Err)
	require.Len(t, r.Result.Rows, 3)
	var got []int64
	for _, row := range r.Result.Rows {
		got = append(got, row[0].Int())
	}
	assert.Equal(t, []int64{0, 2, 4}, got)
}

func TestQueryWithSkipParameter(t *testing.T) {
	s := newTestServer(t, nil)
	seedSocial(t, s)
	sess := &Session{}

	run := func(n string) int {
		r := dispatch(t, s, sess,
			`GRAPH.QUERY social "MATCH (m:L) RETURN m.id ORDER BY m.id SKIP $n" n=`+n)
		require.Equal(t, ReplyResult, r.Kind, "%v", r.Err)
		return len(r.Result.Rows)
	}

	assert.Equal(t, 3, run("2"))
	// the cached template re-resolves the parameter on clone
	assert.Equal(t, 1, run("4"))
	assert.Equal(t, 0, run("100"), "skip beyond stream length is empty, not an error")
}

func TestROQueryRejectsWrites(t *testing.T) {
	s := newTestServer(t, nil)
	seedSocial(t, s)
	sess := &Session{}

	r := dispatch(t, s, sess, `GRAPH.RO_QUERY social "CREATE (n:X)"`)
	require.Equal(t, ReplyError, r.Kind)
	assert.ErrorIs(t, r.Err, ErrReadOnlyViolated)

	r = dispatch(t, s, sess, `GRAPH.RO_QUERY social "MATCH (n:L) RETURN n.id"`)
	assert.Equal(t, ReplyResult, r.Kind)
}

func TestExplainAndProfile(t *testing.T) {
	s := newTestServer(t, nil)
	seedSocial(t, s)
	sess := &Session{}

	r := dispatch(t, s, sess, `GRAPH.EXPLAIN social "MATCH (n:L) RETURN n.id"`)
	require.Equal(t, ReplyText, r.Kind)
	assert.Contains(t, r.Text, "Node By Label Scan")
	assert.Contains(t, r.Text, "Results")

	r = dispatch(t, s, sess, `GRAPH.PROFILE social "MATCH (n:L) RETURN n.id"`)
	require.Equal(t, ReplyText, r.Kind, "%v", r.Err)
	assert.Contains(t, r.Text, "Records produced")
}

func TestGraphListAndDelete(t *testing.T) {
	s := newTestServer(t, nil)
	seedSocial(t, s)
	sess := &Session{}

	r := dispatch(t, s, sess, "GRAPH.LIST")
	require.Equal(t, ReplyList, r.Kind)
	assert.Equal(t, []string{"social"}, r.List)

	r = dispatch(t, s, sess, "GRAPH.DELETE social")
	require.Equal(t, ReplyStatus, r.Kind)

	r = dispatch(t, s, sess, "GRAPH.LIST")
	assert.Empty(t, r.List)

	r = dispatch(t, s, sess, "GRAPH.DELETE social")
	require.Equal(t, ReplyError, r.Kind)
	assert.ErrorIs(t, r.Err, ErrGraphNotFound)
}

func TestIndexCommands(t *testing.T) {
	s := newTestServer(t, nil)
	seedSocial(t, s)
	sess := &Session{}

	r := dispatch(t, s, sess, "GRAPH.INDEX CREATE social NODE L id")
	require.Equal(t, ReplyStatus, r.Kind, "%v", r.Err)

	// population runs on a background goroutine
	require.Eventually(t, func() bool {
		entry, err := s.getGraph("social", false)
		if err != nil {
			return false
		}
		entry.mu.Lock()
		defer entry.mu.Unlock()
		return len(entry.indices) == 1 && entry.indices[0].idx.State() == index.StateActive
	}, 2*time.Second, 10*time.Millisecond)

	entry, err := s.getGraph("social", false)
	require.NoError(t, err)
	assert.Equal(t, 5, entry.indices[0].idx.Count(), "five :L nodes indexed")

	r = dispatch(t, s, sess, "GRAPH.INDEX LIST social")
	require.Equal(t, ReplyList, r.Kind)
	require.Len(t, r.List, 1)
	assert.Contains(t, r.List[0], "NODE L (id) ACTIVE")

	r = dispatch(t, s, sess, "GRAPH.INDEX DROP social NODE L")
	require.Equal(t, ReplyStatus, r.Kind)
	r = dispatch(t, s, sess, "GRAPH.INDEX LIST social")
	assert.Empty(t, r.List)
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	cfgDir := func(c *config.Config) { c.Storage.DataDir = dir }

	s := newTestServer(t, cfgDir)
	seedSocial(t, s)
	sess := &Session{}

	r := dispatch(t, s, sess, "SAVE")
	require.Equal(t, ReplyStatus, r.Kind, "%v", r.Err)
	require.NoError(t, s.Close())

	s2 := newTestServer(t, cfgDir)
	r = dispatch(t, s2, sess, "GRAPH.LIST")
	require.Equal(t, []string{"social"}, r.List)

	r = dispatch(t, s2, sess, `GRAPH.QUERY social "MATCH (n:L) RETURN n.id ORDER BY n.id"`)
	require.Equal(t, ReplyResult, r.Kind, "%v", r.Err)
	assert.Len(t, r.Result.Rows, 5, "snapshot survived the restart")
}

func TestServeTCP(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.Server.ListenAddress = "127.0.0.1:0"
	})
	go func() { _ = s.Run() }()

	require.Eventually(t, func() bool { return s.Addr() != nil }, 2*time.Second, 10*time.Millisecond)

	conn, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("PING\n"))
	require.NoError(t, err)

	rd := bufio.NewReader(conn)
	line, err := rd.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "+PONG\n", line)
}

func TestRenderResultReply(t *testing.T) {
	s := newTestServer(t, nil)
	seedSocial(t, s)
	sess := &Session{}

	r := dispatch(t, s, sess, `GRAPH.QUERY social "MATCH (n:L) WHERE id(n) < 4 RETURN n.id ORDER BY n.id"`)
	require.Equal(t, ReplyResult, r.Kind)
	out := r.Render()
	assert.True(t, strings.HasPrefix(out, "n.id\n0\n2\n"), "got %q", out)
	assert.Contains(t, out, "Query internal execution time")
}
