package main

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// Player is one identity within a room. The entry survives disconnects
// so score and hand carry over when the same name reconnects; it is
// removed only by an explicit leave or room teardown.
type Player struct {
	ID        string
	Name      string
	Hand      []Card
	Score     int
	Connected bool

	client *Client // current connection, nil while disconnected
}

// ClientMessage is an inbound action frame.
type ClientMessage struct {
	Action string `json:"action"`           // "join", "start_game", "play_card", "choose_winner", "leave"
	Name   string `json:"name,omitempty"`   // join
	Index  *int   `json:"index,omitempty"`  // play_card
	Player string `json:"player,omitempty"` // choose_winner
}

type PlayerSummary struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// StateMessage is the personalized snapshot broadcast after every
// accepted transition. Hand always holds only the recipient's own
// cards; Submissions is populated only for the judge during judging.
type StateMessage struct {
	Type        string          `json:"type"` // "state"
	Players     []PlayerSummary `json:"players"`
	Judge       *string         `json:"judge"`
	BlackCard   *string         `json:"black_card"`
	Hand        []string        `json:"hand"`
	Started     bool            `json:"started"`
	Submissions submissionView  `json:"submissions,omitempty"`
}

// ErrorMessage acknowledges a rejected action to its originating
// connection, or announces a stalled room to every member.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func errorFrame(err *gameError) ErrorMessage {
	return ErrorMessage{
		Type:    "error",
		Kind:    string(err.kind),
		Message: err.msg,
	}
}

type submissionPair struct {
	name string
	text string
}

// submissionView marshals as a JSON object whose keys appear in
// submission arrival order, so repeated renders of the judge's view
// are deterministic.
type submissionView []submissionPair

func (s submissionView) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')
	for i, pair := range s {
		if i > 0 {
			buf.WriteByte(',')
		}

		name, err := json.Marshal(pair.name)
		if err != nil {
			return nil, err
		}
		text, err := json.Marshal(pair.text)
		if err != nil {
			return nil, err
		}

		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(text)
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

type Client struct {
	conn   *websocket.Conn
	send   chan any
	player *Player // set by a successful join, only touched by the room loop
}

type action struct {
	client *Client
	msg    ClientMessage
}

type phase int

const (
	phaseLobby phase = iota
	phaseDealing
	phaseSubmission
	phaseJudging
	phasePaused // started game waiting for enough connected players
	phaseClosed
)

type submission struct {
	player *Player
	card   Card
}

// Room owns one play session: its players, deck, and state machine.
// Every mutation runs on the room's own goroutine (run), so actions
// are strictly serialized per room while rooms proceed in parallel.
type Room struct {
	id  string
	mgr *RoomManager

	register chan *Client
	unreg    chan *Client
	actions  chan action
	done     chan struct{}

	mu sync.RWMutex

	clients map[*Client]bool

	createdAt  time.Time
	emptySince time.Time // zero while any player is connected

	players     []*Player // join order, judge rotation follows it
	judgeIndex  int       // index into players, -1 when unset
	prompt      *Card
	submissions []submission
	started     bool
	round       int
	phase       phase
	deck        *Deck
}

func newRoom(id string, mgr *RoomManager, catalog *Catalog, seed int64) *Room {
	now := time.Now()

	return &Room{
		id:         id,
		mgr:        mgr,
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		actions:    make(chan action),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		createdAt:  now,
		emptySince: now,
		judgeIndex: -1,
		deck:       newDeck(catalog, seed),
	}
}

func (r *Room) run(cfg *Config) {
	for {
		select {
		case c := <-r.register:
			r.handleRegister(c)

		case c := <-r.unreg:
			r.handleUnregister(cfg, c)

		case a := <-r.actions:
			r.handleAction(cfg, a)

		case <-r.done:
			return
		}
	}
}

func (r *Room) handleRegister(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase == phaseClosed {
		return
	}

	r.clients[c] = true

	// Catch the new socket up before any action arrives.
	r.sendToLocked(c, r.snapshotForLocked(c))
}

func (r *Room) handleUnregister(cfg *Config, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.clients[c] {
		return
	}

	delete(r.clients, c)
	close(c.send)

	p := c.player
	if p == nil || p.client != c {
		return
	}

	p.Connected = false
	p.client = nil
	logf(cfg, "ROOMS: Player %q disconnected from %s", p.Name, r.id)

	r.noteEmptyLocked()

	// A dropped submitter can be the last one holding up judging.
	r.maybeCloseSubmissionsLocked()

	r.broadcastStateLocked()
}

func (r *Room) handleAction(cfg *Config, a action) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase == phaseClosed {
		r.sendToLocked(a.client, errorFrame(errf(errRoomNotFound, "room %s has been closed", r.id)))
		return
	}

	var changed bool
	var err *gameError

	switch a.msg.Action {
	case "join":
		changed, err = r.handleJoinLocked(cfg, a.client, a.msg.Name)
	case "start_game":
		changed, err = r.handleStartLocked(cfg, a.client)
	case "play_card":
		changed, err = r.handlePlayLocked(cfg, a.client, a.msg.Index)
	case "choose_winner":
		changed, err = r.handleChooseLocked(cfg, a.client, a.msg.Player)
	case "leave":
		changed, err = r.handleLeaveLocked(cfg, a.client)
	default:
		err = errf(errInvalidState, "unknown action %q", a.msg.Action)
	}

	if err != nil {
		if err.kind == errDeckExhausted {
			// Operator misconfiguration, not a player mistake: the
			// whole room sees the stall, along with whatever state the
			// accepted part of the action produced.
			if changed {
				r.broadcastStateLocked()
			}
			r.broadcastErrorLocked(err)
			logf(cfg, "GAMES: Room %s stalled: %s", r.id, err.msg)
			return
		}

		r.sendToLocked(a.client, errorFrame(err))
		return
	}

	if changed {
		r.broadcastStateLocked()
	}
}

func (r *Room) handleJoinLocked(cfg *Config, c *Client, name string) (bool, *gameError) {
	if name == "" {
		return false, errf(errInvalidState, "a non-empty name is required to join")
	}
	if c.player != nil {
		return false, errf(errInvalidState, "this connection has already joined as %q", c.player.Name)
	}

	for _, p := range r.players {
		if p.Name != name {
			continue
		}
		if p.Connected {
			return false, errf(errNameTaken, "the name %q is already taken in this room", name)
		}

		// Reattach the new connection to the disconnected player, so
		// score and hand survive a reconnect.
		p.Connected = true
		p.client = c
		c.player = p
		r.emptySince = time.Time{}
		logf(cfg, "ROOMS: Player %q reconnected to %s", name, r.id)

		return true, r.maybeResumeLocked(cfg)
	}

	p := &Player{
		ID:        uuid.NewString(),
		Name:      name,
		Connected: true,
		client:    c,
	}
	r.players = append(r.players, p)
	c.player = p
	r.emptySince = time.Time{}
	logf(cfg, "ROOMS: Player %q joined %s", name, r.id)

	return true, r.maybeResumeLocked(cfg)
}

func (r *Room) handleStartLocked(cfg *Config, c *Client) (bool, *gameError) {
	if c.player == nil {
		return false, errf(errInvalidState, "join the room before starting the game")
	}
	if r.phase != phaseLobby {
		return false, errf(errInvalidState, "the game has already started")
	}
	if connected := r.connectedCountLocked(); connected < cfg.minPlayers {
		return false, errf(errNotEnoughPlayers, "need at least %d connected players to start, have %d", cfg.minPlayers, connected)
	}

	r.started = true
	r.round = 1
	r.judgeIndex = r.firstConnectedFromLocked(0)
	logf(cfg, "GAMES: Player %q started the game in %s", c.player.Name, r.id)

	return true, r.dealLocked(cfg)
}

func (r *Room) handlePlayLocked(cfg *Config, c *Client, index *int) (bool, *gameError) {
	if c.player == nil {
		return false, errf(errInvalidState, "join the room before playing a card")
	}
	if r.phase != phaseSubmission {
		return false, errf(errInvalidState, "cards cannot be played right now")
	}

	p := c.player
	if p == r.judgeLocked() {
		return false, errf(errInvalidSubmission, "the judge does not submit a card")
	}
	for _, s := range r.submissions {
		if s.player == p {
			return false, errf(errInvalidSubmission, "you have already submitted a card this round")
		}
	}
	if index == nil || *index < 0 || *index >= len(p.Hand) {
		return false, errf(errInvalidSubmission, "hand index out of range")
	}

	card := p.Hand[*index]
	p.Hand = append(p.Hand[:*index], p.Hand[*index+1:]...)
	r.submissions = append(r.submissions, submission{player: p, card: card})
	logf(cfg, "GAMES: Player %q submitted a card in %s", p.Name, r.id)

	r.maybeCloseSubmissionsLocked()

	return true, nil
}

func (r *Room) handleChooseLocked(cfg *Config, c *Client, winner string) (bool, *gameError) {
	if c.player == nil {
		return false, errf(errInvalidState, "join the room before choosing a winner")
	}
	if r.phase != phaseJudging {
		return false, errf(errInvalidState, "there is nothing to judge right now")
	}
	if c.player != r.judgeLocked() {
		return false, errf(errNotJudge, "only the judge chooses a winner")
	}

	var won *Player
	for _, s := range r.submissions {
		if s.player.Name == winner {
			won = s.player
			break
		}
	}
	if won == nil {
		return false, errf(errUnknownSubmitter, "%q did not submit a card this round", winner)
	}

	won.Score++
	for _, s := range r.submissions {
		r.deck.discard(s.card)
	}
	r.submissions = nil
	logf(cfg, "GAMES: Player %q won round %d in %s", won.Name, r.round, r.id)

	// Round resolution is not externally visible: rotate the judge,
	// advance the round, and redeal (or pause) before broadcasting.
	r.advanceJudgeLocked()
	r.round++

	return true, r.resumeOrPauseLocked(cfg)
}

func (r *Room) handleLeaveLocked(cfg *Config, c *Client) (bool, *gameError) {
	p := c.player
	if p == nil {
		return false, errf(errInvalidState, "join the room before leaving it")
	}

	// Their cards go back into circulation.
	r.deck.discard(p.Hand...)
	p.Hand = nil

	kept := r.submissions[:0]
	for _, s := range r.submissions {
		if s.player == p {
			r.deck.discard(s.card)
			continue
		}
		kept = append(kept, s)
	}
	r.submissions = kept

	wasJudge := p == r.judgeLocked()

	idx := -1
	for i, q := range r.players {
		if q == p {
			idx = i
			break
		}
	}
	r.players = append(r.players[:idx], r.players[idx+1:]...)
	if r.judgeIndex > idx {
		r.judgeIndex--
	}

	p.Connected = false
	p.client = nil
	c.player = nil
	logf(cfg, "ROOMS: Player %q left %s", p.Name, r.id)

	// Departure also ends the connection's membership in the room.
	if r.clients[c] {
		delete(r.clients, c)
		close(c.send)
	}

	if len(r.players) == 0 {
		r.closeLocked()
		go r.mgr.remove(r.id)
		logf(cfg, "ROOMS: Destroyed empty room %s", r.id)
		return false, nil
	}

	r.noteEmptyLocked()

	if wasJudge {
		if r.judgeIndex >= len(r.players) {
			r.judgeIndex = 0
		}
		r.judgeIndex = r.firstConnectedFromLocked(r.judgeIndex)

		if r.started && r.phase != phaseLobby {
			// The round cannot be judged without its judge; recycle it
			// and redeal under the successor.
			for _, s := range r.submissions {
				r.deck.discard(s.card)
			}
			r.submissions = nil

			return true, r.resumeOrPauseLocked(cfg)
		}

		return true, nil
	}

	if r.phase == phaseJudging && len(r.submissions) == 0 {
		// Every submitter left; nothing remains to judge.
		return true, r.resumeOrPauseLocked(cfg)
	}

	r.maybeCloseSubmissionsLocked()

	return true, nil
}

// dealLocked tops up every connected non-judge hand and draws a fresh
// prompt. The full requirement is checked before any card moves, so a
// DeckExhausted failure leaves hands and piles untouched and the room
// parked in Dealing.
func (r *Room) dealLocked(cfg *Config) *gameError {
	r.phase = phaseDealing

	judge := r.judgeLocked()

	needed := 0
	for _, p := range r.players {
		if p == judge || !p.Connected {
			continue
		}
		if n := cfg.handSize - len(p.Hand); n > 0 {
			needed += n
		}
	}

	if available := r.deck.available(); needed > available {
		return errf(errDeckExhausted, "dealing requires %d response cards but only %d remain in circulation", needed, available)
	}
	if r.deck.promptsAvailable() == 0 {
		return errf(errDeckExhausted, "no prompt cards remain in the catalog")
	}

	for _, p := range r.players {
		if p == judge || !p.Connected {
			continue
		}
		n := cfg.handSize - len(p.Hand)
		if n <= 0 {
			continue
		}
		cards, err := r.deck.draw(n)
		if err != nil {
			return err
		}
		p.Hand = append(p.Hand, cards...)
	}

	if r.prompt != nil {
		r.deck.discardPrompt(*r.prompt)
		r.prompt = nil
	}
	card, err := r.deck.drawPrompt()
	if err != nil {
		return err
	}
	r.prompt = &card

	r.submissions = nil
	r.phase = phaseSubmission

	return nil
}

// resumeOrPauseLocked enters Dealing when a connected judge and at
// least two connected submitters are present, and parks the started
// game in the paused lobby-like state otherwise.
func (r *Room) resumeOrPauseLocked(cfg *Config) *gameError {
	// A new round needs its judge present; pass the seat to the next
	// connected player if the current judge dropped while the room
	// was paused.
	if judge := r.judgeLocked(); judge == nil || !judge.Connected {
		start := r.judgeIndex
		if start < 0 {
			start = 0
		}
		r.judgeIndex = r.firstConnectedFromLocked(start)
	}

	if r.judgeIndex == -1 || r.connectedNonJudgeLocked() < 2 {
		r.phase = phasePaused
		return nil
	}

	return r.dealLocked(cfg)
}

// maybeResumeLocked restarts a paused game once a (re)join restores
// quorum.
func (r *Room) maybeResumeLocked(cfg *Config) *gameError {
	if r.phase != phasePaused {
		return nil
	}

	return r.resumeOrPauseLocked(cfg)
}

// maybeCloseSubmissionsLocked transitions to Judging once every
// eligible submitter has submitted. A player who joined mid-round
// holds no cards until the next deal and is not waited on.
func (r *Room) maybeCloseSubmissionsLocked() {
	if r.phase != phaseSubmission || len(r.submissions) == 0 {
		return
	}

	if len(r.submissions) >= r.eligibleSubmittersLocked() {
		r.phase = phaseJudging
	}
}

// eligibleSubmittersLocked counts connected non-judge players who can
// still act this round: anyone holding cards, plus anyone who already
// submitted theirs.
func (r *Room) eligibleSubmittersLocked() int {
	judge := r.judgeLocked()

	count := 0
	for _, p := range r.players {
		if !p.Connected || p == judge {
			continue
		}
		if len(p.Hand) > 0 {
			count++
			continue
		}
		for _, s := range r.submissions {
			if s.player == p {
				count++
				break
			}
		}
	}

	return count
}

// advanceJudgeLocked moves the judge to the next connected player in
// join order, wrapping. Disconnected players are skipped but keep
// their slot in the rotation for when they return.
func (r *Room) advanceJudgeLocked() {
	if len(r.players) == 0 {
		r.judgeIndex = -1
		return
	}

	start := r.judgeIndex
	if start < 0 {
		start = len(r.players) - 1
	}

	for i := 1; i <= len(r.players); i++ {
		next := (start + i) % len(r.players)
		if r.players[next].Connected {
			r.judgeIndex = next
			return
		}
	}

	r.judgeIndex = -1
}

// firstConnectedFromLocked returns the index of the first connected
// player at or after start in join order, wrapping, or -1.
func (r *Room) firstConnectedFromLocked(start int) int {
	if len(r.players) == 0 {
		return -1
	}

	for i := 0; i < len(r.players); i++ {
		idx := (start + i) % len(r.players)
		if r.players[idx].Connected {
			return idx
		}
	}

	return -1
}

func (r *Room) judgeLocked() *Player {
	if r.judgeIndex < 0 || r.judgeIndex >= len(r.players) {
		return nil
	}

	return r.players[r.judgeIndex]
}

func (r *Room) connectedCountLocked() int {
	count := 0
	for _, p := range r.players {
		if p.Connected {
			count++
		}
	}

	return count
}

func (r *Room) connectedNonJudgeLocked() int {
	judge := r.judgeLocked()

	count := 0
	for _, p := range r.players {
		if p.Connected && p != judge {
			count++
		}
	}

	return count
}

// noteEmptyLocked stamps the moment the connected-player count reached
// zero, which starts the idle-teardown clock.
func (r *Room) noteEmptyLocked() {
	if r.connectedCountLocked() == 0 && r.emptySince.IsZero() {
		r.emptySince = time.Now()
	}
}

// snapshotForLocked computes one recipient's view from the canonical
// room state. Each player sees only their own hand; submission
// contents are revealed only to the judge, and only once judging has
// begun.
func (r *Room) snapshotForLocked(c *Client) StateMessage {
	players := make([]PlayerSummary, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, PlayerSummary{
			Name:  p.Name,
			Score: p.Score,
		})
	}

	msg := StateMessage{
		Type:    "state",
		Players: players,
		Hand:    []string{},
		Started: r.started,
	}

	if judge := r.judgeLocked(); judge != nil {
		name := judge.Name
		msg.Judge = &name
	}

	if r.prompt != nil {
		text := r.prompt.Text
		msg.BlackCard = &text
	}

	if c.player != nil {
		hand := make([]string, 0, len(c.player.Hand))
		for _, card := range c.player.Hand {
			hand = append(hand, card.Text)
		}
		msg.Hand = hand
	}

	if r.phase == phaseJudging && c.player != nil && c.player == r.judgeLocked() {
		view := make(submissionView, 0, len(r.submissions))
		for _, s := range r.submissions {
			view = append(view, submissionPair{
				name: s.player.Name,
				text: s.card.Text,
			})
		}
		msg.Submissions = view
	}

	return msg
}

func (r *Room) broadcastStateLocked() {
	for c := range r.clients {
		r.sendToLocked(c, r.snapshotForLocked(c))
	}
}

func (r *Room) broadcastErrorLocked(err *gameError) {
	for c := range r.clients {
		r.sendToLocked(c, errorFrame(err))
	}
}

// sendToLocked delivers without blocking. A client whose buffer is
// full is treated as broken and folded into the disconnect path, so
// one bad connection never stalls delivery to the others.
func (r *Room) sendToLocked(c *Client, msg any) {
	if !r.clients[c] {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(r.clients, c)
		close(c.send)

		if p := c.player; p != nil && p.client == c {
			p.Connected = false
			p.client = nil
			r.noteEmptyLocked()
		}
	}
}

func (r *Room) close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closeLocked()
}

func (r *Room) closeLocked() {
	if r.phase == phaseClosed {
		return
	}

	r.phase = phaseClosed

	for c := range r.clients {
		delete(r.clients, c)
		close(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	}

	close(r.done)
}

// RoomManager is the process-wide table of room id to room instance.
// Rooms are created lazily on first connection and reaped once their
// connected-player count has been zero for the full timeout window.
type RoomManager struct {
	mu      sync.Mutex
	rooms   map[string]*Room
	cfg     *Config
	catalog *Catalog
}

func newRoomManager(cfg *Config, catalog *Catalog) *RoomManager {
	m := &RoomManager{
		rooms:   make(map[string]*Room),
		cfg:     cfg,
		catalog: catalog,
	}

	if cfg.roomTimeout > 0 {
		go m.reaperLoop()
	}

	return m
}

// resolve returns the room for an id, atomically creating and starting
// it if absent, so exactly one instance ever exists per id.
func (m *RoomManager) resolve(id string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	if room, ok := m.rooms[id]; ok {
		return room
	}

	room := newRoom(id, m, m.catalog, deckSeed())
	m.rooms[id] = room
	go room.run(m.cfg)
	logf(m.cfg, "ROOMS: Created room %s", id)

	return room
}

func (m *RoomManager) lookup(id string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[id]

	return room, ok
}

func (m *RoomManager) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.rooms, id)
}

// newRoomID generates a crypto-random room ID and ensures it doesn't
// collide with an existing room.
func (m *RoomManager) newRoomID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		m.mu.Lock()
		_, exists := m.rooms[id]
		m.mu.Unlock()

		if !exists {
			return id
		}
	}
}

func (m *RoomManager) reaperLoop() {
	ticker := time.NewTicker(m.cfg.roomTimeout / 2)
	for range ticker.C {
		m.sweep(time.Now().Add(-m.cfg.roomTimeout))
	}
}

// sweep destroys rooms whose idle-teardown timer elapsed before
// cutoff.
func (m *RoomManager) sweep(cutoff time.Time) {
	var expired []*Room

	m.mu.Lock()
	for id, room := range m.rooms {
		room.mu.RLock()
		empty := room.emptySince
		room.mu.RUnlock()

		if !empty.IsZero() && empty.Before(cutoff) {
			delete(m.rooms, id)
			expired = append(expired, room)
		}
	}
	m.mu.Unlock()

	for _, room := range expired {
		room.close()
		logf(m.cfg, "ROOMS: Reaped idle room %s", room.id)
	}
}

// deckSeed draws a per-room shuffle seed, so rooms shuffle
// independently.
func deckSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return time.Now().UnixNano()
	}

	return int64(binary.LittleEndian.Uint64(buf[:]))
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// serveWS upgrades one connection per player and binds it to the room
// named in the path, creating the room on first contact.
func serveWS(cfg *Config, mgr *RoomManager) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		roomID := ps.ByName("roomid")
		if roomID == "" {
			http.Error(w, "missing room id", http.StatusBadRequest)
			return
		}

		room := mgr.resolve(roomID)

		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn: conn,
			send: make(chan any, 8),
		}

		select {
		case room.register <- client:
		case <-room.done:
			_ = conn.Close()
			return
		}

		go client.writePump()
		client.readPump(room)
	}
}

func (c *Client) readPump(r *Room) {
	defer func() {
		select {
		case r.unreg <- c:
		case <-r.done:
		}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		select {
		case r.actions <- action{client: c, msg: msg}:
		case <-r.done:
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// serveNewRoom mints a fresh collision-checked room id. The room
// itself is created lazily when the first player connects.
func serveNewRoom(cfg *Config, mgr *RoomManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		roomID := mgr.newRoomID()
		logf(cfg, "ROOMS: Minted room id %s", roomID)

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		securityHeaders(cfg, w)

		_ = json.NewEncoder(w).Encode(map[string]string{
			"room_id": roomID,
		})
	}
}

// serveRoomQR generates a PNG QR code for sharing a room's URL. Any
// well-formed id is served; rooms are created lazily, so a freshly
// minted id has no room instance until its first player connects.
func serveRoomQR(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		roomID := ps.ByName("roomid")
		if roomID == "" {
			http.Error(w, "missing room id", http.StatusBadRequest)
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		// We are at /rooms/:roomid/qr; strip trailing "/qr" to get the room URL.
		path := strings.TrimSuffix(r.URL.Path, "/qr")

		url := scheme + "://" + r.Host + path

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

// registerCardsGame sets up routes so that:
//   - /rooms              → mints a fresh random room id
//   - /rooms/:roomid/qr   → PNG QR code for that room's URL
//   - /ws/:roomid         → WebSocket for that room
func registerCardsGame(cfg *Config, mgr *RoomManager, mux *httprouter.Router) {
	mux.GET(cfg.prefix+"/rooms", serveNewRoom(cfg, mgr))

	mux.GET(cfg.prefix+"/rooms/:roomid/qr", serveRoomQR(cfg))

	mux.GET(cfg.prefix+"/ws/:roomid", serveWS(cfg, mgr))
}
