// Package graph serves a live view of the include graph over HTTP and
// WebSocket.
package graph

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tliron/commonlog"

	"texlsp/internal/document"
	"texlsp/internal/workspace"
)

var log = commonlog.GetLogger("texlsp.graph")

// GraphData holds the nodes and links of the graph.
type GraphData struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// Node represents a document. ID must be unique.
type Node struct {
	ID       int    `json:"id"`
	URI      string `json:"uri"`
	Label    string `json:"label"`
	Language string `json:"language,omitempty"`
	Open     bool   `json:"open"`
	Grayed   bool   `json:"grayed"` // linked to but not loaded
}

// Link represents a directed edge between two nodes.
type Link struct {
	Source int `json:"source"`
	Target int `json:"target"`
}

// IncrementalMessage is sent over WebSocket to update clients.
type IncrementalMessage struct {
	Op    string     `json:"op"`              // "init", "add", "update", "deleteNode", "deleteLink"
	Graph *GraphData `json:"graph,omitempty"` // used for "init"
	Node  *Node      `json:"node,omitempty"`  // for add/update/deleteNode
	Link  *Link      `json:"link,omitempty"`  // for add/deleteLink
}

//go:embed static/*
var staticFiles embed.FS

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

type Viewer struct {
	graphMu sync.Mutex
	nodes   map[string]*Node
	links   map[Link]struct{}
	nextID  int

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]bool

	startMu sync.Mutex
	server  *http.Server
	url     string
}

func New() *Viewer {
	return &Viewer{
		nodes:   make(map[string]*Node),
		links:   make(map[Link]struct{}),
		clients: make(map[*websocket.Conn]bool),
	}
}

// Handler serves the viewer page under /static/ and the update stream at /ws.
func (v *Viewer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/static/", http.FileServer(http.FS(staticFiles)))
	mux.HandleFunc("/ws", v.handleWS)
	return mux
}

// Start listens on addr (":0" picks a free port) and returns the URL of the
// viewer page. Starting twice returns the first URL.
func (v *Viewer) Start(addr string) (string, error) {
	v.startMu.Lock()
	defer v.startMu.Unlock()
	return v.start(addr)
}

func (v *Viewer) start(addr string) (string, error) {
	if v.url != "" {
		return v.url, nil
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	v.server = &http.Server{Handler: v.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := v.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("graph server error: %s", err)
		}
	}()
	v.url = "http://" + l.Addr().String() + "/static/"
	log.Infof("graph viewer at %s", v.url)
	return v.url, nil
}

// Close stops the server and disconnects all clients.
func (v *Viewer) Close() error {
	v.clientsMu.Lock()
	for conn := range v.clients {
		conn.Close()
		delete(v.clients, conn)
	}
	v.clientsMu.Unlock()
	v.startMu.Lock()
	defer v.startMu.Unlock()
	if v.server == nil {
		return nil
	}
	v.url = ""
	return v.server.Close()
}

// Seed adds every document and edge currently in ws.
func (v *Viewer) Seed(ws *workspace.Workspace) {
	for _, doc := range ws.Documents() {
		v.PutDocument(doc.URI, doc.Language.String(), ws.IsOpen(doc.URI))
	}
	for _, doc := range ws.Documents() {
		for _, e := range ws.Edges(doc.URI) {
			v.PutLink(e.Source, e.Target)
		}
	}
}

// Follow applies workspace events until the channel is closed.
func (v *Viewer) Follow(events <-chan workspace.Event) {
	for ev := range events {
		switch ev.Type {
		case workspace.DocumentCreated, workspace.DocumentUpdated:
			v.PutDocument(ev.Document.URI, ev.Document.Language, ev.Document.Open)
		case workspace.DocumentRemoved:
			v.RemoveDocument(ev.Document.URI)
		case workspace.EdgeAdded:
			v.PutLink(ev.Edge.Source, ev.Edge.Target)
		case workspace.EdgeRemoved:
			v.RemoveLink(ev.Edge.Source, ev.Edge.Target)
		default:
			log.Warningf("unknown event %s", ev.Type)
		}
	}
}

// Show starts the viewer if needed, seeds it from ws and follows its events
// until ctx is done. It returns the viewer URL.
func (v *Viewer) Show(ctx context.Context, ws *workspace.Workspace, addr string) (string, error) {
	v.startMu.Lock()
	defer v.startMu.Unlock()
	if v.url != "" {
		return v.url, nil
	}
	url, err := v.start(addr)
	if err != nil {
		return "", err
	}
	events, err := ws.Subscribe(ctx)
	if err != nil {
		return "", err
	}
	v.Seed(ws)
	go v.Follow(events)
	return url, nil
}

// nodeFor returns the node of uri, creating a grayed one. graphMu must be held.
func (v *Viewer) nodeFor(uri string) (*Node, bool) {
	if n, ok := v.nodes[uri]; ok {
		return n, false
	}
	v.nextID++
	n := &Node{ID: v.nextID, URI: uri, Label: label(uri), Grayed: true}
	v.nodes[uri] = n
	return n, true
}

// PutDocument adds or updates the node of a loaded document.
func (v *Viewer) PutDocument(uri, language string, open bool) {
	v.graphMu.Lock()
	n, created := v.nodeFor(uri)
	n.Grayed = false
	n.Open = open
	n.Language = language
	node := *n
	v.graphMu.Unlock()

	op := "update"
	if created {
		op = "add"
	}
	v.broadcast(IncrementalMessage{Op: op, Node: &node})
}

// RemoveDocument deletes a node and its outgoing links. A node that is
// still linked to stays as a grayed placeholder.
func (v *Viewer) RemoveDocument(uri string) {
	v.graphMu.Lock()
	n, ok := v.nodes[uri]
	if !ok {
		v.graphMu.Unlock()
		return
	}
	var dropped []Link
	linked := false
	for l := range v.links {
		switch {
		case l.Source == n.ID:
			delete(v.links, l)
			dropped = append(dropped, l)
		case l.Target == n.ID:
			linked = true
		}
	}
	node := *n
	if linked {
		n.Grayed = true
		n.Open = false
		node = *n
	} else {
		delete(v.nodes, uri)
	}
	v.graphMu.Unlock()

	for i := range dropped {
		v.broadcast(IncrementalMessage{Op: "deleteLink", Link: &dropped[i]})
	}
	if linked {
		v.broadcast(IncrementalMessage{Op: "update", Node: &node})
	} else {
		v.broadcast(IncrementalMessage{Op: "deleteNode", Node: &Node{ID: node.ID}})
	}
}

// PutLink adds a link, creating placeholder nodes for unknown ends.
func (v *Viewer) PutLink(source, target string) {
	v.graphMu.Lock()
	var added []Node
	src, created := v.nodeFor(source)
	if created {
		added = append(added, *src)
	}
	dst, created := v.nodeFor(target)
	if created {
		added = append(added, *dst)
	}
	link := Link{Source: src.ID, Target: dst.ID}
	_, exists := v.links[link]
	v.links[link] = struct{}{}
	v.graphMu.Unlock()

	for i := range added {
		v.broadcast(IncrementalMessage{Op: "add", Node: &added[i]})
	}
	if !exists {
		v.broadcast(IncrementalMessage{Op: "add", Link: &link})
	}
}

// RemoveLink deletes a link. A grayed target without links is dropped.
func (v *Viewer) RemoveLink(source, target string) {
	v.graphMu.Lock()
	src, ok1 := v.nodes[source]
	dst, ok2 := v.nodes[target]
	if !ok1 || !ok2 {
		v.graphMu.Unlock()
		return
	}
	link := Link{Source: src.ID, Target: dst.ID}
	if _, ok := v.links[link]; !ok {
		v.graphMu.Unlock()
		return
	}
	delete(v.links, link)
	orphan := dst.Grayed && !v.linkedLocked(dst.ID)
	if orphan {
		delete(v.nodes, target)
	}
	v.graphMu.Unlock()

	v.broadcast(IncrementalMessage{Op: "deleteLink", Link: &link})
	if orphan {
		v.broadcast(IncrementalMessage{Op: "deleteNode", Node: &Node{ID: dst.ID}})
	}
}

func (v *Viewer) linkedLocked(id int) bool {
	for l := range v.links {
		if l.Source == id || l.Target == id {
			return true
		}
	}
	return false
}

// GetGraph returns a snapshot of the current graph, ordered by ID.
func (v *Viewer) GetGraph() GraphData {
	v.graphMu.Lock()
	defer v.graphMu.Unlock()
	data := GraphData{Nodes: []Node{}, Links: []Link{}}
	for _, n := range v.nodes {
		data.Nodes = append(data.Nodes, *n)
	}
	for l := range v.links {
		data.Links = append(data.Links, l)
	}
	sort.Slice(data.Nodes, func(i, j int) bool { return data.Nodes[i].ID < data.Nodes[j].ID })
	sort.Slice(data.Links, func(i, j int) bool {
		if data.Links[i].Source != data.Links[j].Source {
			return data.Links[i].Source < data.Links[j].Source
		}
		return data.Links[i].Target < data.Links[j].Target
	})
	return data
}

// broadcast marshals and sends a message to all clients.
func (v *Viewer) broadcast(msg IncrementalMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("marshal error: %s", err)
		return
	}
	v.clientsMu.Lock()
	defer v.clientsMu.Unlock()
	for conn := range v.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debugf("broadcast error: %s", err)
			conn.Close()
			delete(v.clients, conn)
		}
	}
}

// handleWS upgrades HTTP connections and sends the initial graph state.
func (v *Viewer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warningf("ws upgrade error: %s", err)
		return
	}

	v.clientsMu.Lock()
	state := v.GetGraph()
	data, err := json.Marshal(IncrementalMessage{Op: "init", Graph: &state})
	if err == nil {
		err = conn.WriteMessage(websocket.TextMessage, data)
	}
	if err != nil {
		v.clientsMu.Unlock()
		log.Warningf("could not send initial graph: %s", err)
		conn.Close()
		return
	}
	v.clients[conn] = true
	v.clientsMu.Unlock()

	defer func() {
		v.clientsMu.Lock()
		delete(v.clients, conn)
		v.clientsMu.Unlock()
		conn.Close()
	}()

	// keep connection open
	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}
}

func label(uri string) string {
	if p, err := document.PathFromURI(uri); err == nil {
		return filepath.Base(p)
	}
	return uri
}
