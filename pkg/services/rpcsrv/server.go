/*
Package rpcsrv implements the JSON-RPC 2.0 server serving the tree service.
Requests are accepted as HTTP POSTs to the root path, responses use standard
JSON-RPC 2.0 codes extended with a set of service-specific ones. The same
methods (plus subscribe/unsubscribe) are available via WebSocket connections
to the /ws path, subscribers are notified of every root change.
*/
package rpcsrv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nspcc-dev/cmtree/pkg/cmt"
	"github.com/nspcc-dev/cmtree/pkg/config"
	"github.com/nspcc-dev/cmtree/pkg/encoding/address"
	"github.com/nspcc-dev/cmtree/pkg/rpc"
	"github.com/nspcc-dev/cmtree/pkg/rpc/result"
	"github.com/nspcc-dev/cmtree/pkg/services/rpcsrv/params"
	"github.com/nspcc-dev/cmtree/pkg/services/whitelist"
	"github.com/nspcc-dev/cmtree/pkg/simplemt"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type (
	// Server represents the JSON-RPC 2.0 server.
	Server struct {
		http []*http.Server
		tls  []*http.Server

		log       *zap.Logger
		config    config.RPC
		userAgent string
		treeCfg   config.TreeConfiguration
		whitelist *whitelist.Service
		simple    *simplemt.Tree

		wsReadLimit int64
		upgrader    websocket.Upgrader

		started  *atomic.Bool
		errChan  chan<- error
		shutdown chan struct{}

		subsLock    sync.RWMutex
		subscribers map[*subscriber]bool

		subsCounterLock sync.RWMutex
		rootSubs        int
		rootCh          chan whitelist.RootEvent
	}
)

const (
	// defaultMaxWebSocketClients is the default maximum number of websocket
	// clients per Server.
	defaultMaxWebSocketClients = 64

	// defaultMaxRequestBodyBytes is the default maximum allowed size of an
	// HTTP request body in bytes.
	defaultMaxRequestBodyBytes = 5 * 1024 * 1024

	// Write deadline.
	wsWriteLimit = wsPingPeriod / 2

	// Maximum amount of time to wait for a pong.
	wsPongLimit = 60 * time.Second

	// Ping period for the connection liveness check.
	wsPingPeriod = wsPongLimit / 2
)

var rpcHandlers = map[string]func(*Server, params.Params) (interface{}, *rpc.Error){
	"getproof":        (*Server).getProof,
	"getroot":         (*Server).getRoot,
	"getsize":         (*Server).getSize,
	"getversion":      (*Server).getVersion,
	"haskey":          (*Server).hasKey,
	"insertaddress":   (*Server).insertAddress,
	"insertkey":       (*Server).insertKey,
	"removeaddress":   (*Server).removeAddress,
	"removekey":       (*Server).removeKey,
	"simpleadd":       (*Server).simpleAdd,
	"simpleget":       (*Server).simpleGet,
	"simpleproof":     (*Server).simpleProof,
	"simpleroot":      (*Server).simpleRoot,
	"validateaddress": (*Server).validateAddress,
	"verifyproof":     (*Server).verifyProof,
}

var rpcWsHandlers = map[string]func(*Server, params.Params, *subscriber) (interface{}, *rpc.Error){
	"subscribe":   (*Server).subscribe,
	"unsubscribe": (*Server).unsubscribe,
}

// errSimpleDisabled is returned for simple tree methods when no simple tree
// is configured (SimpleTreeDepth is zero).
var errSimpleDisabled = rpc.NewMethodNotFoundError("simple tree is not enabled")

// New creates a new Server struct. The whitelist service is mandatory,
// simple can be nil in which case simple tree methods answer with an error.
func New(wl *whitelist.Service, simple *simplemt.Tree, conf config.RPC,
	treeConf config.TreeConfiguration, log *zap.Logger, errChan chan<- error) Server {
	if conf.MaxRequestBodyBytes <= 0 {
		conf.MaxRequestBodyBytes = defaultMaxRequestBodyBytes
	}
	if conf.MaxRequestHeaderBytes <= 0 {
		conf.MaxRequestHeaderBytes = http.DefaultMaxHeaderBytes
	}
	if conf.MaxWebSocketClients == 0 {
		conf.MaxWebSocketClients = defaultMaxWebSocketClients
		log.Info("MaxWebSocketClients is not set or wrong, setting default value", zap.Int("MaxWebSocketClients", defaultMaxWebSocketClients))
	}

	addrs := conf.GetAddresses()
	httpServers := make([]*http.Server, len(addrs))
	for i, addr := range addrs {
		httpServers[i] = &http.Server{
			Addr:           addr,
			MaxHeaderBytes: conf.MaxRequestHeaderBytes,
		}
	}

	var tlsServers []*http.Server
	if cfg := conf.TLSConfig; cfg.Enabled {
		addrs := cfg.GetAddresses()
		tlsServers = make([]*http.Server, len(addrs))
		for i, addr := range addrs {
			tlsServers[i] = &http.Server{
				Addr:           addr,
				MaxHeaderBytes: conf.MaxRequestHeaderBytes,
			}
		}
	}

	var wsOriginChecker func(*http.Request) bool
	if conf.EnableCORSWorkaround {
		wsOriginChecker = func(_ *http.Request) bool { return true }
	}
	return Server{
		http: httpServers,
		tls:  tlsServers,

		log:       log,
		config:    conf,
		userAgent: config.GenerateUserAgent(),
		treeCfg:   treeConf,
		whitelist: wl,
		simple:    simple,

		wsReadLimit: int64(conf.MaxRequestBodyBytes),
		upgrader:    websocket.Upgrader{CheckOrigin: wsOriginChecker},

		started:  atomic.NewBool(false),
		errChan:  errChan,
		shutdown: make(chan struct{}),

		subscribers: make(map[*subscriber]bool),
		// Not buffered to preserve the order of events.
		rootCh: make(chan whitelist.RootEvent),
	}
}

// Name returns the service name.
func (s *Server) Name() string {
	return "rpc"
}

// Start creates a new JSON-RPC server listening on the configured addresses.
// It creates goroutines needed internally and returns its errors via errChan
// passed to New(). The Server only starts once, subsequent calls to Start
// are no-op.
func (s *Server) Start() {
	if !s.config.Enabled {
		s.log.Info("RPC server is not enabled")
		return
	}
	if !s.started.CAS(false, true) {
		s.log.Info("RPC server already started")
		return
	}

	go s.handleSubEvents()

	for _, srv := range s.http {
		srv.Handler = http.HandlerFunc(s.handleHTTPRequest)
		s.log.Info("starting rpc-server", zap.String("endpoint", srv.Addr))

		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			s.errChan <- fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
			return
		}
		srv.Addr = ln.Addr().String() // set Addr to the actual address
		go func(srv *http.Server) {
			err := srv.Serve(ln)
			if !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("failed to start RPC server", zap.Error(err))
				s.errChan <- err
			}
		}(srv)
	}

	if cfg := s.config.TLSConfig; cfg.Enabled {
		for _, srv := range s.tls {
			srv.Handler = http.HandlerFunc(s.handleHTTPRequest)
			s.log.Info("starting rpc-server (https)", zap.String("endpoint", srv.Addr))
			go func(srv *http.Server) {
				ln, err := net.Listen("tcp", srv.Addr)
				if err != nil {
					s.errChan <- err
					return
				}
				srv.Addr = ln.Addr().String()
				err = srv.ServeTLS(ln, cfg.CertFile, cfg.KeyFile)
				if !errors.Is(err, http.ErrServerClosed) {
					s.log.Error("failed to start TLS RPC server",
						zap.Error(err), zap.String("endpoint", srv.Addr))
					s.errChan <- err
				}
			}(srv)
		}
	}
}

// Shutdown stops the RPC server if it's running. It can only be called once,
// subsequent calls to Shutdown on the same instance are no-op. The instance
// that was stopped can not be started again by calling Start (use a new
// instance if needed).
func (s *Server) Shutdown() {
	if !s.started.CAS(true, false) {
		return
	}
	// Signal to websocket writer routines and handleSubEvents.
	close(s.shutdown)

	if s.config.TLSConfig.Enabled {
		for _, srv := range s.tls {
			s.log.Info("shutting down RPC server (https)", zap.String("endpoint", srv.Addr))
			err := srv.Shutdown(context.Background())
			if err != nil {
				s.log.Warn("error during RPC (https) server shutdown",
					zap.String("endpoint", srv.Addr), zap.Error(err))
			}
		}
	}

	for _, srv := range s.http {
		s.log.Info("shutting down RPC server", zap.String("endpoint", srv.Addr))
		err := srv.Shutdown(context.Background())
		if err != nil {
			s.log.Warn("error during RPC (http) server shutdown",
				zap.String("endpoint", srv.Addr), zap.Error(err))
		}
	}

	// Wait for handleSubEvents to finish.
	<-s.rootCh
}

// Addresses returns the list of actual addresses the server listens on after
// Start. Useful with dynamic "host:0" configurations.
func (s *Server) Addresses() []string {
	addrs := make([]string, len(s.http))
	for i, srv := range s.http {
		addrs[i] = srv.Addr
	}
	return addrs
}

func (s *Server) handleHTTPRequest(w http.ResponseWriter, httpRequest *http.Request) {
	// Restrict the request body before further processing.
	httpRequest.Body = http.MaxBytesReader(w, httpRequest.Body, int64(s.config.MaxRequestBodyBytes))
	req := params.NewRequest()

	if httpRequest.URL.Path == "/ws" && httpRequest.Method == "GET" {
		// Technically there is a race between this check and
		// s.subscribers modification below, but it's tiny and not
		// really critical to bother with it. Some additional clients
		// may sneak in, no big deal.
		s.subsLock.RLock()
		numOfSubs := len(s.subscribers)
		s.subsLock.RUnlock()
		if numOfSubs >= s.config.MaxWebSocketClients {
			s.writeHTTPErrorResponse(
				params.NewIn(),
				w,
				rpc.NewInternalServerError("websocket users limit reached"),
			)
			return
		}
		ws, err := s.upgrader.Upgrade(w, httpRequest, nil)
		if err != nil {
			s.log.Info("websocket connection upgrade failed", zap.Error(err))
			return
		}
		resChan := make(chan abstractResult) // abstract or abstractBatch
		subChan := make(chan *websocket.PreparedMessage, notificationBufSize)
		subscr := &subscriber{writer: subChan, ws: ws}
		s.subsLock.Lock()
		s.subscribers[subscr] = true
		s.subsLock.Unlock()
		go s.handleWsWrites(ws, resChan, subChan)
		s.handleWsReads(ws, resChan, subscr)
		return
	}

	if httpRequest.Method == "OPTIONS" && s.config.EnableCORSWorkaround { // Preflight CORS.
		setCORSOriginHeaders(w.Header())
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST") // GET for websockets.
		w.Header().Set("Access-Control-Max-Age", "21600")           // 6 hours.
		return
	}

	if httpRequest.Method != "POST" {
		s.writeHTTPErrorResponse(
			params.NewIn(),
			w,
			rpc.NewInvalidParamsError(fmt.Sprintf("invalid method '%s', please retry with 'POST'", httpRequest.Method)),
		)
		return
	}

	err := req.DecodeData(httpRequest.Body)
	if err != nil {
		s.writeHTTPErrorResponse(params.NewIn(), w, rpc.NewParseError(err.Error()))
		return
	}

	resp := s.handleRequest(req, nil)
	s.writeHTTPServerResponse(req, w, resp)
}

func (s *Server) handleRequest(req *params.Request, sub *subscriber) abstractResult {
	if req.In != nil {
		req.In.Method = escapeForLog(req.In.Method) // No valid method name will be changed by it.
		return s.handleIn(req.In, sub)
	}
	resp := make(abstractBatch, len(req.Batch))
	for i := range req.Batch {
		req.Batch[i].Method = escapeForLog(req.Batch[i].Method) // No valid method name will be changed by it.
		resp[i] = s.handleIn(&req.Batch[i], sub)
	}
	return resp
}

func (s *Server) handleIn(req *params.In, sub *subscriber) abstract {
	var res interface{}
	var resErr *rpc.Error
	if req.JSONRPC != rpc.JSONRPCVersion {
		return s.packResponse(req, nil, rpc.NewInvalidParamsError(fmt.Sprintf("problem parsing JSON: invalid version, expected 2.0 got '%s'", req.JSONRPC)))
	}

	reqParams := params.Params(req.RawParams)

	s.log.Debug("processing rpc request",
		zap.String("method", req.Method),
		zap.Stringer("params", reqParams))

	start := time.Now()
	defer func() { addReqTimeMetric(req.Method, time.Since(start)) }()

	resErr = rpc.NewMethodNotFoundError(fmt.Sprintf("method %q not supported", req.Method))
	handler, ok := rpcHandlers[req.Method]
	if ok {
		res, resErr = handler(s, reqParams)
	} else if sub != nil {
		handler, ok := rpcWsHandlers[req.Method]
		if ok {
			res, resErr = handler(s, reqParams, sub)
		}
	}
	return s.packResponse(req, res, resErr)
}

func (s *Server) handleWsWrites(ws *websocket.Conn, resChan <-chan abstractResult, subChan <-chan *websocket.PreparedMessage) {
	pingTicker := time.NewTicker(wsPingPeriod)
eventloop:
	for {
		select {
		case <-s.shutdown:
			break eventloop
		case event, ok := <-subChan:
			if !ok {
				break eventloop
			}
			if err := ws.SetWriteDeadline(time.Now().Add(wsWriteLimit)); err != nil {
				break eventloop
			}
			if err := ws.WritePreparedMessage(event); err != nil {
				break eventloop
			}
		case res, ok := <-resChan:
			if !ok {
				break eventloop
			}
			if err := ws.SetWriteDeadline(time.Now().Add(wsWriteLimit)); err != nil {
				break eventloop
			}
			if err := ws.WriteJSON(res); err != nil {
				break eventloop
			}
		case <-pingTicker.C:
			if err := ws.SetWriteDeadline(time.Now().Add(wsWriteLimit)); err != nil {
				break eventloop
			}
			if err := ws.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				break eventloop
			}
		}
	}
	ws.Close()
	pingTicker.Stop()
	// Drain the notification channel as there might be some goroutines
	// blocked on it.
drainloop:
	for {
		select {
		case _, ok := <-subChan:
			if !ok {
				break drainloop
			}
		default:
			break drainloop
		}
	}
}

func (s *Server) handleWsReads(ws *websocket.Conn, resChan chan<- abstractResult, subscr *subscriber) {
	ws.SetReadLimit(s.wsReadLimit)
	err := ws.SetReadDeadline(time.Now().Add(wsPongLimit))
	ws.SetPongHandler(func(string) error { return ws.SetReadDeadline(time.Now().Add(wsPongLimit)) })
requestloop:
	for err == nil {
		req := params.NewRequest()
		err := ws.ReadJSON(req)
		if err != nil {
			break
		}
		res := s.handleRequest(req, subscr)
		res.RunForErrors(func(jsonErr *rpc.Error) {
			s.logRequestError(req, jsonErr)
		})
		select {
		case <-s.shutdown:
			break requestloop
		case resChan <- res:
		}
	}

	s.subsLock.Lock()
	delete(s.subscribers, subscr)
	s.subsLock.Unlock()
	s.subsCounterLock.Lock()
	for _, e := range subscr.feeds {
		if e != rpc.InvalidEventID {
			s.unsubscribeFromChannel(e)
		}
	}
	s.subsCounterLock.Unlock()
	close(resChan)
	ws.Close()
}

func (s *Server) getVersion(_ params.Params) (interface{}, *rpc.Error) {
	return &result.Version{
		UserAgent:       s.userAgent,
		HashFunction:    s.treeCfg.HashFunction,
		MaxProofLength:  s.treeCfg.MaxProofLength,
		SimpleTreeDepth: s.treeCfg.SimpleTreeDepth,
	}, nil
}

func (s *Server) getRoot(_ params.Params) (interface{}, *rpc.Error) {
	root, size := s.whitelist.State()
	return &result.Root{Root: root, Size: size}, nil
}

func (s *Server) getSize(_ params.Params) (interface{}, *rpc.Error) {
	return s.whitelist.Size(), nil
}

func (s *Server) hasKey(reqParams params.Params) (interface{}, *rpc.Error) {
	key, err := reqParams.Value(0).GetKey()
	if err != nil {
		return nil, rpc.ErrInvalidParams
	}
	return s.whitelist.Has(key), nil
}

func (s *Server) insertKey(reqParams params.Params) (interface{}, *rpc.Error) {
	key, err := reqParams.Value(0).GetKey()
	if err != nil {
		return nil, rpc.ErrInvalidParams
	}
	ev, err := s.whitelist.Insert(key)
	if err != nil {
		return nil, mapTreeError(err)
	}
	return &result.KeyUpdate{Key: ev.Key, Root: ev.Root, Size: ev.Size}, nil
}

func (s *Server) removeKey(reqParams params.Params) (interface{}, *rpc.Error) {
	key, err := reqParams.Value(0).GetKey()
	if err != nil {
		return nil, rpc.ErrInvalidParams
	}
	ev, err := s.whitelist.Remove(key)
	if err != nil {
		return nil, mapTreeError(err)
	}
	return &result.KeyUpdate{Key: ev.Key, Root: ev.Root, Size: ev.Size}, nil
}

func (s *Server) insertAddress(reqParams params.Params) (interface{}, *rpc.Error) {
	addr, err := reqParams.Value(0).GetStringStrict()
	if err != nil {
		return nil, rpc.ErrInvalidParams
	}
	ev, err := s.whitelist.InsertAddress(addr)
	if err != nil {
		if errors.Is(err, cmt.ErrDuplicateKey) {
			return nil, mapTreeError(err)
		}
		return nil, rpc.WrapErrorWithData(rpc.ErrInvalidParams, err.Error())
	}
	return &result.KeyUpdate{Key: ev.Key, Root: ev.Root, Size: ev.Size}, nil
}

func (s *Server) removeAddress(reqParams params.Params) (interface{}, *rpc.Error) {
	addr, err := reqParams.Value(0).GetStringStrict()
	if err != nil {
		return nil, rpc.ErrInvalidParams
	}
	ev, err := s.whitelist.RemoveAddress(addr)
	if err != nil {
		if errors.Is(err, cmt.ErrKeyNotFound) {
			return nil, mapTreeError(err)
		}
		return nil, rpc.WrapErrorWithData(rpc.ErrInvalidParams, err.Error())
	}
	return &result.KeyUpdate{Key: ev.Key, Root: ev.Root, Size: ev.Size}, nil
}

func (s *Server) getProof(reqParams params.Params) (interface{}, *rpc.Error) {
	key, err := reqParams.Value(0).GetKey()
	if err != nil {
		return nil, rpc.ErrInvalidParams
	}
	proof, root := s.whitelist.GetProof(key)
	return &result.GetProof{Root: root, Existence: proof.Existence, Proof: proof}, nil
}

func (s *Server) verifyProof(reqParams params.Params) (interface{}, *rpc.Error) {
	root, err := reqParams.Value(0).GetUint256()
	if err != nil {
		return nil, rpc.ErrInvalidParams
	}
	key, err := reqParams.Value(1).GetKey()
	if err != nil {
		return nil, rpc.ErrInvalidParams
	}
	proof, err := reqParams.Value(2).GetProof()
	if err != nil {
		return nil, rpc.WrapErrorWithData(rpc.ErrInvalidParams, err.Error())
	}
	valid, err := s.whitelist.VerifyProof(root, key, proof)
	if err != nil {
		return nil, mapTreeError(err)
	}
	return &result.VerifyProof{Valid: valid}, nil
}

func (s *Server) validateAddress(reqParams params.Params) (interface{}, *rpc.Error) {
	param := reqParams.Value(0)
	if param == nil {
		return nil, rpc.ErrInvalidParams
	}
	valid := false
	if addr, err := param.GetStringStrict(); err == nil {
		_, err = address.StringToUint256(addr)
		valid = err == nil
	}
	return result.ValidateAddress{
		Address: json.RawMessage(param.RawMessage),
		IsValid: valid,
	}, nil
}

func (s *Server) simpleAdd(reqParams params.Params) (interface{}, *rpc.Error) {
	if s.simple == nil {
		return nil, errSimpleDisabled
	}
	value, err := reqParams.Value(0).GetBigInt()
	if err != nil || value.Sign() < 0 {
		return nil, rpc.ErrInvalidParams
	}
	index, err := s.simple.Add(context.Background(), value)
	if err != nil {
		if errors.Is(err, simplemt.ErrTreeFull) {
			return nil, rpc.NewTreeFullError(err.Error())
		}
		return nil, rpc.WrapErrorWithData(rpc.ErrInvalidParams, err.Error())
	}
	return &result.SimpleValue{
		Index: index,
		Value: value.String(),
		Root:  s.simple.Root().BigInt().String(),
	}, nil
}

func (s *Server) simpleGet(reqParams params.Params) (interface{}, *rpc.Error) {
	if s.simple == nil {
		return nil, errSimpleDisabled
	}
	index, err := reqParams.Value(0).GetInt()
	if err != nil || index < 0 {
		return nil, rpc.ErrInvalidParams
	}
	value, err := s.simple.Get(context.Background(), int64(index))
	if err != nil {
		return nil, mapTreeError(err)
	}
	return &result.SimpleValue{
		Index: int64(index),
		Value: value.String(),
		Root:  s.simple.Root().BigInt().String(),
	}, nil
}

func (s *Server) simpleRoot(_ params.Params) (interface{}, *rpc.Error) {
	if s.simple == nil {
		return nil, errSimpleDisabled
	}
	return &result.SimpleRoot{
		Root: s.simple.Root().BigInt().String(),
		Size: s.simple.Size(),
	}, nil
}

func (s *Server) simpleProof(reqParams params.Params) (interface{}, *rpc.Error) {
	if s.simple == nil {
		return nil, errSimpleDisabled
	}
	index, err := reqParams.Value(0).GetInt()
	if err != nil || index < 0 {
		return nil, rpc.ErrInvalidParams
	}
	proof, value, err := s.simple.Prove(context.Background(), int64(index))
	if err != nil {
		return nil, mapTreeError(err)
	}
	return &result.SimpleProof{
		Index: int64(index),
		Value: value.String(),
		Root:  s.simple.Root().BigInt().String(),
		Proof: proof,
	}, nil
}

// mapTreeError converts tree errors into JSON-RPC ones preserving the
// service-specific codes.
func mapTreeError(err error) *rpc.Error {
	switch {
	case errors.Is(err, cmt.ErrDuplicateKey):
		return rpc.NewDuplicateKeyError(err.Error())
	case errors.Is(err, cmt.ErrKeyNotFound):
		return rpc.NewKeyNotFoundError(err.Error())
	case errors.Is(err, cmt.ErrMalformedProof):
		return rpc.NewMalformedProofError(err.Error())
	case errors.Is(err, cmt.ErrProofTooLong):
		return rpc.NewProofTooLongError(err.Error())
	case errors.Is(err, simplemt.ErrTreeFull):
		return rpc.NewTreeFullError(err.Error())
	case errors.Is(err, simplemt.ErrNoValue):
		return rpc.NewNoValueError(err.Error())
	default:
		return rpc.NewInternalServerError(err.Error())
	}
}

// subscribe handles subscription requests from websocket clients.
func (s *Server) subscribe(reqParams params.Params, sub *subscriber) (interface{}, *rpc.Error) {
	streamName, err := reqParams.Value(0).GetString()
	if err != nil {
		return nil, rpc.ErrInvalidParams
	}
	event, err := rpc.GetEventIDFromString(streamName)
	if err != nil || event == rpc.MissedEventID {
		return nil, rpc.ErrInvalidParams
	}
	s.subsLock.Lock()
	var id int
	for ; id < len(sub.feeds); id++ {
		if sub.feeds[id] == rpc.InvalidEventID {
			break
		}
	}
	if id == len(sub.feeds) {
		s.subsLock.Unlock()
		return nil, rpc.NewInternalServerError("maximum number of subscriptions is reached")
	}
	sub.feeds[id] = event
	s.subsLock.Unlock()

	s.subsCounterLock.Lock()
	select {
	case <-s.shutdown:
		s.subsCounterLock.Unlock()
		return nil, rpc.NewInternalServerError("server is shutting down")
	default:
	}
	s.subscribeToChannel(event)
	s.subsCounterLock.Unlock()
	return strconv.FormatInt(int64(id), 10), nil
}

// subscribeToChannel subscribes the server to whitelist events if it's not
// yet subscribed for them. It's supposed to be called with s.subsCounterLock
// taken by the caller.
func (s *Server) subscribeToChannel(event rpc.EventID) {
	if event == rpc.RootEventID {
		if s.rootSubs == 0 {
			s.whitelist.SubscribeForRoots(s.rootCh)
		}
		s.rootSubs++
	}
}

// unsubscribe handles unsubscription requests from websocket clients.
func (s *Server) unsubscribe(reqParams params.Params, sub *subscriber) (interface{}, *rpc.Error) {
	id, err := reqParams.Value(0).GetInt()
	if err != nil || id < 0 {
		return nil, rpc.ErrInvalidParams
	}
	s.subsLock.Lock()
	if len(sub.feeds) <= id || sub.feeds[id] == rpc.InvalidEventID {
		s.subsLock.Unlock()
		return nil, rpc.ErrInvalidParams
	}
	event := sub.feeds[id]
	sub.feeds[id] = rpc.InvalidEventID
	s.subsLock.Unlock()

	s.subsCounterLock.Lock()
	s.unsubscribeFromChannel(event)
	s.subsCounterLock.Unlock()
	return true, nil
}

// unsubscribeFromChannel unsubscribes the server from whitelist events if
// there are no more subscribers for them. It must be called with
// s.subsCounterLock taken by the caller.
func (s *Server) unsubscribeFromChannel(event rpc.EventID) {
	if event == rpc.RootEventID {
		s.rootSubs--
		if s.rootSubs == 0 {
			s.whitelist.UnsubscribeFromRoots(s.rootCh)
		}
	}
}

func (s *Server) handleSubEvents() {
	b, err := json.Marshal(rpc.Notification{
		JSONRPC: rpc.JSONRPCVersion,
		Event:   rpc.MissedEventID,
		Payload: make([]interface{}, 0),
	})
	if err != nil {
		s.log.Error("fatal: failed to marshal overflow event", zap.Error(err))
		return
	}
	overflowMsg, err := websocket.NewPreparedMessage(websocket.TextMessage, b)
	if err != nil {
		s.log.Error("fatal: failed to prepare overflow message", zap.Error(err))
		return
	}
chloop:
	for {
		var resp = rpc.Notification{
			JSONRPC: rpc.JSONRPCVersion,
			Payload: make([]interface{}, 1),
		}
		var msg *websocket.PreparedMessage
		select {
		case <-s.shutdown:
			break chloop
		case ev := <-s.rootCh:
			resp.Event = rpc.RootEventID
			resp.Payload[0] = ev
		}
		s.subsLock.RLock()
	subloop:
		for sub := range s.subscribers {
			if sub.overflown.Load() {
				continue
			}
			for i := range sub.feeds {
				if sub.feeds[i] == resp.Event {
					if msg == nil {
						b, err = json.Marshal(resp)
						if err != nil {
							s.log.Error("failed to marshal notification",
								zap.Error(err),
								zap.String("type", resp.Event.String()))
							break subloop
						}
						msg, err = websocket.NewPreparedMessage(websocket.TextMessage, b)
						if err != nil {
							s.log.Error("failed to prepare notification message",
								zap.Error(err),
								zap.String("type", resp.Event.String()))
							break subloop
						}
					}
					select {
					case sub.writer <- msg:
					default:
						sub.overflown.Store(true)
						// The missed event is to be delivered eventually.
						go func(sub *subscriber) {
							sub.writer <- overflowMsg
							sub.overflown.Store(false)
						}(sub)
					}
					// The message is sent only once per subscriber.
					break
				}
			}
		}
		s.subsLock.RUnlock()
	}
	// It's important to do it with subsCounterLock held because no
	// subscription routine should be running concurrently to this one.
	// And even if one is to run after the unlock, it'll see closed
	// s.shutdown and won't subscribe.
	s.subsCounterLock.Lock()
	// There might be no subscription in reality, but it's not a problem,
	// the whitelist service just ignores unknown channels.
	s.whitelist.UnsubscribeFromRoots(s.rootCh)
	s.subsCounterLock.Unlock()
drainloop:
	for {
		select {
		case <-s.rootCh:
		default:
			break drainloop
		}
	}
	// It's not required closing it, but it's drained already, so this is
	// safe and it also gives a signal to the Shutdown routine.
	close(s.rootCh)
}

func (s *Server) packResponse(r *params.In, result interface{}, respErr *rpc.Error) abstract {
	resp := abstract{
		Header: rpc.Header{
			JSONRPC: r.JSONRPC,
			ID:      r.RawID,
		},
	}
	if respErr != nil {
		resp.Error = respErr
	} else {
		resp.Result = result
	}
	return resp
}

// logRequestError is a request error logger.
func (s *Server) logRequestError(r *params.Request, jsonErr *rpc.Error) {
	logFields := []zap.Field{
		zap.Int64("code", jsonErr.Code),
	}
	if len(jsonErr.Data) != 0 {
		logFields = append(logFields, zap.String("cause", jsonErr.Data))
	}

	if r.In != nil {
		logFields = append(logFields, zap.String("method", r.In.Method))
		params := params.Params(r.In.RawParams)
		logFields = append(logFields, zap.Any("params", params))
	}

	logText := "Error encountered with rpc request"
	switch jsonErr.Code {
	case rpc.InternalServerErrorCode:
		s.log.Error(logText, logFields...)
	default:
		s.log.Info(logText, logFields...)
	}
}

// writeHTTPErrorResponse writes an error response to the ResponseWriter.
func (s *Server) writeHTTPErrorResponse(r *params.In, w http.ResponseWriter, jsonErr *rpc.Error) {
	resp := s.packResponse(r, nil, jsonErr)
	s.writeHTTPServerResponse(&params.Request{In: r}, w, resp)
}

func setCORSOriginHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Access-Control-Allow-Headers, Authorization, X-Requested-With")
}

func (s *Server) writeHTTPServerResponse(r *params.Request, w http.ResponseWriter, resp abstractResult) {
	// Errors can happen in many places and we can only catch ALL of them here.
	resp.RunForErrors(func(jsonErr *rpc.Error) {
		s.logRequestError(r, jsonErr)
	})
	if r.In != nil {
		resp := resp.(abstract)
		if resp.Error != nil {
			w.WriteHeader(getHTTPCodeForError(resp.Error))
		}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if s.config.EnableCORSWorkaround {
		setCORSOriginHeaders(w.Header())
	}

	encoder := json.NewEncoder(w)
	err := encoder.Encode(resp)

	if err != nil {
		switch {
		case r.In != nil:
			s.log.Error("Error encountered while encoding response",
				zap.String("err", err.Error()),
				zap.String("method", r.In.Method))
		case r.Batch != nil:
			s.log.Error("Error encountered while encoding batch response",
				zap.String("err", err.Error()))
		}
	}
}

func escapeForLog(in string) string {
	return strings.Map(func(c rune) rune {
		if !strconv.IsGraphic(c) {
			return -1
		}
		return c
	}, in)
}
