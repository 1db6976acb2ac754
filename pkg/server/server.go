package server

import (
	"bufio"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/tosone/falkordb/pkg/config"
	"github.com/tosone/falkordb/pkg/datatypes"
	"github.com/tosone/falkordb/pkg/graph"
	"github.com/tosone/falkordb/pkg/index"
	"github.com/tosone/falkordb/pkg/plan"
	"github.com/tosone/falkordb/pkg/serializer"
)

// Errors surfaced to clients.
var (
	ErrAuthRequired     = errors.New("authentication required")
	ErrInvalidPassword  = errors.New("invalid password")
	ErrUnknownCommand   = errors.New("unknown command")
	ErrWrongArity       = errors.New("wrong number of arguments")
	ErrGraphNotFound    = errors.New("graph not found")
	ErrQueueFull        = errors.New("max pending queries exceeded")
	ErrReadOnlyViolated = errors.New("graph.RO_QUERY is to be executed only on read-only queries")
)

// namedIndex couples an index with the metadata the commands report.
type namedIndex struct {
	label  string
	fields []string
	etype  index.EntityType
	idx    *index.RangeIndex
}

// graphEntry is one managed graph plus its indices.
type graphEntry struct {
	g       *graph.Graph
	mu      sync.Mutex // guards indices
	indices []*namedIndex
}

// Session carries per-connection state.
type Session struct {
	authed bool
}

// Server embeds the graph engine behind the keyspace command surface.
type Server struct {
	cfg      *config.Config
	log      logrus.FieldLogger
	compiler Compiler
	store    *Store

	planCache *lru.Cache[string, *plan.Plan]

	mu     sync.RWMutex
	graphs map[string]*graphEntry

	execTokens chan struct{}
	queued     atomic.Int64

	listener net.Listener
	closed   atomic.Bool
}

// New builds a server from cfg. The snapshot store opens under the data
// directory (in-memory when unset) and existing snapshots load eagerly.
func New(cfg *config.Config, compiler Compiler, log logrus.FieldLogger) (*Server, error) {
	if compiler == nil {
		compiler = &PatternCompiler{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	cache, err := lru.New[string, *plan.Plan](cfg.Query.PlanCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "plan cache")
	}
	store, err := OpenStore(cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:        cfg,
		log:        log,
		compiler:   compiler,
		store:      store,
		planCache:  cache,
		graphs:     make(map[string]*graphEntry),
		execTokens: make(chan struct{}, cfg.Query.ThreadPoolSize),
	}
	if err := s.loadSnapshots(); err != nil {
		store.Close()
		return nil, err
	}
	return s, nil
}

func (s *Server) loadSnapshots() error {
	names, err := s.store.GraphNames()
	if err != nil {
		return err
	}
	for _, name := range names {
		keys, err := s.store.LoadGraph(name)
		if err != nil {
			return err
		}
		g, err := serializer.Decode(name, keys)
		if err != nil {
			return errors.Wrapf(err, "decode graph %q", name)
		}
		g.SetLogger(s.log)
		s.graphs[name] = &graphEntry{g: g}
		s.log.WithField("graph", name).Info("loaded graph snapshot")
	}
	return nil
}

// Close shuts the listener and the snapshot store.
func (s *Server) Close() error {
	s.closed.Store(true)
	if s.listener != nil {
		_ = s.listener.Close()
	}
	return s.store.Close()
}

func (s *Server) matrixPolicy() graph.SyncPolicy {
	switch s.cfg.Storage.MatrixSyncPolicy {
	case "nop":
		return graph.SyncPolicyNop
	case "resize":
		return graph.SyncPolicyResize
	default:
		return graph.SyncPolicyFlushResize
	}
}

// getGraph returns the managed graph, creating it when create is set.
func (s *Server) getGraph(name string, create bool) (*graphEntry, error) {
	s.mu.RLock()
	entry, ok := s.graphs[name]
	s.mu.RUnlock()
	if ok {
		return entry, nil
	}
	if !create {
		return nil, errors.Wrap(ErrGraphNotFound, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok = s.graphs[name]; ok {
		return entry, nil
	}
	g := graph.New(name)
	g.SetLogger(s.log)
	g.SetMatrixPolicy(s.matrixPolicy())
	entry = &graphEntry{g: g}
	s.graphs[name] = entry
	return entry, nil
}

// Dispatch executes one parsed command for a session.
func (s *Server) Dispatch(sess *Session, cmd *Command) Reply {
	if s.cfg.Server.RequirePass != "" && !sess.authed && cmd.Name != "AUTH" {
		return errorReply(ErrAuthRequired)
	}

	switch cmd.Name {
	case "PING":
		return statusReply("PONG")
	case "QUIT":
		return statusReply("OK")
	case "AUTH":
		return s.cmdAuth(sess, cmd.Args)
	case "SAVE":
		return s.cmdSave()
	case "GRAPH.QUERY":
		return s.cmdQuery(cmd.Args, false, false)
	case "GRAPH.RO_QUERY":
		return s.cmdQuery(cmd.Args, true, false)
	case "GRAPH.PROFILE":
		return s.cmdQuery(cmd.Args, false, true)
	case "GRAPH.EXPLAIN":
		return s.cmdExplain(cmd.Args)
	case "GRAPH.DELETE":
		return s.cmdDelete(cmd.Args)
	case "GRAPH.LIST":
		return s.cmdList()
	case "GRAPH.INDEX":
		return s.cmdIndex(cmd.Args)
	default:
		return errorReply(errors.Wrap(ErrUnknownCommand, cmd.Name))
	}
}

func (s *Server) cmdAuth(sess *Session, args []string) Reply {
	if len(args) != 1 {
		return errorReply(ErrWrongArity)
	}
	if s.cfg.Server.RequirePass == "" {
		return statusReply("OK")
	}
	if bcrypt.CompareHashAndPassword([]byte(s.cfg.Server.RequirePass), []byte(args[0])) != nil {
		return errorReply(ErrInvalidPassword)
	}
	sess.authed = true
	return statusReply("OK")
}

// parseParams interprets trailing k=v arguments as query parameters.
func parseParams(args []string) map[string]datatypes.Value {
	if len(args) == 0 {
		return nil
	}
	params := make(map[string]datatypes.Value, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok {
			continue
		}
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			params[k] = datatypes.NewInt(i)
		} else if f, err := strconv.ParseFloat(v, 64); err == nil {
			params[k] = datatypes.NewDouble(f)
		} else {
			params[k] = datatypes.NewString(v)
		}
	}
	return params
}

// admit enforces the thread pool and the bounded admission queue.
func (s *Server) admit() (func(), error) {
	select {
	case s.execTokens <- struct{}{}:
		return func() { <-s.execTokens }, nil
	default:
	}
	if int(s.queued.Add(1)) > s.cfg.Server.MaxQueuedQueries {
		s.queued.Add(-1)
		return nil, ErrQueueFull
	}
	s.execTokens <- struct{}{}
	s.queued.Add(-1)
	return func() { <-s.execTokens }, nil
}

// planFor compiles (or fetches from the LRU) the plan template and
// returns an executable clone bound to ctx.
func (s *Server) planFor(entry *graphEntry, ctx *plan.Context, name, query string) (*plan.Plan, error) {
	cacheKey := name + "\x00" + query
	if tmpl, ok := s.planCache.Get(cacheKey); ok {
		planCacheHits.Inc()
		return tmpl.Clone(ctx), nil
	}
	planCacheMisses.Inc()
	tmpl, err := s.compiler.Compile(ctx, query)
	if err != nil {
		return nil, err
	}
	s.planCache.Add(cacheKey, tmpl)
	return tmpl.Clone(ctx), nil
}

// readOnly reports whether the plan contains no mutating operator.
func readOnly(p *plan.Plan) bool {
	for i := 0; i < p.OpCount(); i++ {
		switch p.Op(i).Base().Kind() {
		case plan.OpKindCreate, plan.OpKindUpdate, plan.OpKindDelete, plan.OpKindMerge:
			return false
		}
	}
	return true
}

func (s *Server) cmdQuery(args []string, ro, profile bool) Reply {
	if len(args) < 2 {
		return errorReply(ErrWrongArity)
	}
	name, query := args[0], args[1]
	params := parseParams(args[2:])

	release, err := s.admit()
	if err != nil {
		return errorReply(err)
	}
	defer release()

	entry, err := s.getGraph(name, !ro)
	if err != nil {
		return errorReply(err)
	}

	ctx := plan.NewContext(entry.g, params)
	if s.cfg.Query.Timeout > 0 {
		ctx.SetDeadline(time.Now().Add(s.cfg.Query.Timeout))
	}

	p, err := s.planFor(entry, ctx, name, query)
	if err != nil {
		return errorReply(err)
	}
	if ro && !readOnly(p) {
		return errorReply(ErrReadOnlyViolated)
	}

	cmdLabel := "query"
	if ro {
		cmdLabel = "ro_query"
	} else if profile {
		cmdLabel = "profile"
	}
	qid := uuid.NewString()
	log := s.log.WithFields(logrus.Fields{"graph": name, "query_id": qid})
	start := time.Now()

	var (
		rs  *plan.ResultSet
		out string
	)
	if profile {
		out, rs, err = p.Profile()
	} else {
		rs, err = p.Execute()
	}
	queryDuration.WithLabelValues(cmdLabel).Observe(time.Since(start).Seconds())
	if err != nil {
		queriesTotal.WithLabelValues(cmdLabel, "error").Inc()
		log.WithError(err).Debug("query failed")
		return errorReply(err)
	}
	queriesTotal.WithLabelValues(cmdLabel, "ok").Inc()
	log.WithField("rows", len(rs.Rows)).Debug("query finished")

	if profile {
		return textReply(out)
	}
	return resultReply(rs)
}

func (s *Server) cmdExplain(args []string) Reply {
	if len(args) != 2 {
		return errorReply(ErrWrongArity)
	}
	entry, err := s.getGraph(args[0], true)
	if err != nil {
		return errorReply(err)
	}
	ctx := plan.NewContext(entry.g, nil)
	p, err := s.planFor(entry, ctx, args[0], args[1])
	if err != nil {
		return errorReply(err)
	}
	return textReply(p.Explain())
}

func (s *Server) cmdDelete(args []string) Reply {
	if len(args) != 1 {
		return errorReply(ErrWrongArity)
	}
	name := args[0]
	s.mu.Lock()
	entry, ok := s.graphs[name]
	delete(s.graphs, name)
	s.mu.Unlock()
	if !ok {
		return errorReply(errors.Wrap(ErrGraphNotFound, name))
	}
	entry.mu.Lock()
	for _, ni := range entry.indices {
		ni.idx.Drop()
	}
	entry.mu.Unlock()
	if err := s.store.DeleteGraph(name); err != nil {
		return errorReply(err)
	}
	return statusReply("OK")
}

func (s *Server) cmdList() Reply {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.graphs))
	for name := range s.graphs {
		names = append(names, name)
	}
	return listReply(names)
}

func (s *Server) cmdSave() Reply {
	s.mu.RLock()
	entries := make(map[string]*graphEntry, len(s.graphs))
	for name, e := range s.graphs {
		entries[name] = e
	}
	s.mu.RUnlock()

	for name, entry := range entries {
		keys, err := serializer.Encode(entry.g)
		if err != nil {
			return errorReply(err)
		}
		if err := s.store.SaveGraph(name, keys); err != nil {
			return errorReply(err)
		}
	}
	return statusReply("OK")
}

// cmdIndex handles GRAPH.INDEX CREATE|DROP|LIST.
//
//	GRAPH.INDEX CREATE <graph> NODE|EDGE <label> <field> [field...]
//	GRAPH.INDEX DROP   <graph> NODE|EDGE <label>
//	GRAPH.INDEX LIST   <graph>
func (s *Server) cmdIndex(args []string) Reply {
	if len(args) < 2 {
		return errorReply(ErrWrongArity)
	}
	sub := strings.ToUpper(args[0])
	entry, err := s.getGraph(args[1], sub == "CREATE")
	if err != nil {
		return errorReply(err)
	}

	switch sub {
	case "CREATE":
		if len(args) < 5 {
			return errorReply(ErrWrongArity)
		}
		etype := index.IndexNode
		if strings.EqualFold(args[2], "EDGE") {
			etype = index.IndexEdge
		}
		label, fields := args[3], args[4:]

		entry.g.AcquireWriteLock()
		idx := index.NewRangeIndex(entry.g, label, etype, fields)
		entry.g.RegisterObserver(idx)
		entry.g.ReleaseLock()

		ni := &namedIndex{label: label, fields: fields, etype: etype, idx: idx}
		entry.mu.Lock()
		entry.indices = append(entry.indices, ni)
		entry.mu.Unlock()

		idx.StartPopulation()
		go func() {
			p := &index.Populator{BatchSize: s.cfg.Storage.IndexBatchSize, Log: s.log}
			p.Populate(idx, entry.g)
		}()
		return statusReply("OK")

	case "DROP":
		if len(args) != 4 {
			return errorReply(ErrWrongArity)
		}
		etype := index.IndexNode
		if strings.EqualFold(args[2], "EDGE") {
			etype = index.IndexEdge
		}
		label := args[3]
		entry.mu.Lock()
		defer entry.mu.Unlock()
		for i, ni := range entry.indices {
			if ni.label == label && ni.etype == etype {
				ni.idx.Drop()
				entry.g.AcquireWriteLock()
				entry.g.DeregisterObserver(ni.idx)
				entry.g.ReleaseLock()
				entry.indices = append(entry.indices[:i], entry.indices[i+1:]...)
				return statusReply("OK")
			}
		}
		return errorReply(errors.Errorf("no such index on %s", label))

	case "LIST":
		entry.mu.Lock()
		defer entry.mu.Unlock()
		out := make([]string, 0, len(entry.indices))
		for _, ni := range entry.indices {
			kind := "NODE"
			if ni.etype == index.IndexEdge {
				kind = "EDGE"
			}
			out = append(out, kind+" "+ni.label+" ("+strings.Join(ni.fields, ", ")+") "+ni.idx.State().String())
		}
		return listReply(out)

	default:
		return errorReply(errors.Wrap(ErrUnknownCommand, "GRAPH.INDEX "+sub))
	}
}

// Run serves the TCP listener until Close. Transient accept errors back
// off exponentially.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.cfg.Server.ListenAddress)
	if err != nil {
		return errors.Wrap(err, "listen")
	}
	s.listener = ln
	s.log.WithField("addr", ln.Addr().String()).Info("falkordb listening")

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 0
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			d := policy.NextBackOff()
			s.log.WithError(err).WithField("retry_in", d).Warn("accept failed")
			time.Sleep(d)
			continue
		}
		policy.Reset()
		go s.serveConn(conn)
	}
}

// Addr returns the bound listen address, once Run has started.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	sess := &Session{}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		cmd, err := ParseCommand(scanner.Text())
		if err != nil {
			if errors.Is(err, ErrEmptyCommand) {
				continue
			}
			_, _ = conn.Write([]byte(errorReply(err).Render()))
			continue
		}
		reply := s.Dispatch(sess, cmd)
		if _, err := conn.Write([]byte(reply.Render())); err != nil {
			return
		}
		if cmd.Name == "QUIT" {
			return
		}
	}
}
