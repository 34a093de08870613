// Package cursor implements the adapter.Adapter contract for the
// Cursor IDE, whose sessions live in per-workspace SQLite databases
// plus one global database, per spec.md §4.1's embedded-database
// adapter contract. Every database is opened read-only with
// "must already exist" semantics; a locked database surfaces as
// adapter.ErrLocked rather than being retried.
package cursor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	_ "modernc.org/sqlite"

	"github.com/Kushalwho/handoff/internal/adapter"
	"github.com/Kushalwho/handoff/internal/adapter/registry"
	"github.com/Kushalwho/handoff/internal/analyzer"
	"github.com/Kushalwho/handoff/internal/canonical"
	"github.com/Kushalwho/handoff/internal/pathhash"
)

const (
	modernManifestKey = "composer.composerData"
	legacyManifestKey = "workbench.panel.aichat.view.aichat.chatdata"
)

// Adapter implements adapter.Adapter for Cursor.
type Adapter struct {
	workspaceStorageDir string
	globalDBPath        string

	manifestCacheMu sync.Mutex
	manifestCache   map[uint64][]composerManifest
}

// New creates a Cursor adapter rooted at the registry's workspace
// storage path, with the global database as its usual sibling.
func New() *Adapter {
	entry, _ := registry.Lookup(canonical.SourceCursor)
	wsDir := entry.StorageRoot()
	globalDir := filepath.Join(filepath.Dir(wsDir), "globalStorage")
	return &Adapter{
		workspaceStorageDir: wsDir,
		globalDBPath:        filepath.Join(globalDir, "state.vscdb"),
		manifestCache:       make(map[uint64][]composerManifest),
	}
}

// manifestCacheKey hashes the database path and table name so a
// workspace's manifest blob (often tens of KB of JSON) is parsed once
// per process even though ListSessions and a following Capture both
// need it. xxhash gives a cheap, non-cryptographic key for this
// in-memory memoization, the same fast-hash role it fills in the
// wider pack for cache and dedup keys.
func manifestCacheKey(dbPath, table string) uint64 {
	h := xxhash.New()
	h.WriteString(dbPath)
	h.WriteString("|")
	h.WriteString(table)
	return h.Sum64()
}

// cachedManifests reads and parses a database's composer manifests at
// most once per process, returning the memoized result on repeat
// calls for the same (dbPath, table) pair.
func (a *Adapter) cachedManifests(db *sql.DB, dbPath, table string) []composerManifest {
	key := manifestCacheKey(dbPath, table)

	a.manifestCacheMu.Lock()
	if cached, ok := a.manifestCache[key]; ok {
		a.manifestCacheMu.Unlock()
		return cached
	}
	a.manifestCacheMu.Unlock()

	manifests := readManifests(db, table)

	a.manifestCacheMu.Lock()
	a.manifestCache[key] = manifests
	a.manifestCacheMu.Unlock()
	return manifests
}

func (a *Adapter) ID() canonical.Source { return canonical.SourceCursor }

func (a *Adapter) Detect() bool {
	if a.workspaceStorageDir == "" {
		return false
	}
	entries, err := os.ReadDir(a.workspaceStorageDir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(a.workspaceStorageDir, e.Name(), "state.vscdb")); err == nil {
			return true
		}
	}
	if _, err := os.Stat(a.globalDBPath); err == nil {
		return true
	}
	return false
}

// openReadOnly opens a SQLite database read-only with must-exist
// semantics. A missing file is NotFound; a lock or I/O error on an
// existing file is Locked, instructing the caller to close Cursor.
func openReadOnly(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, adapter.ErrNotFound
	}
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", adapter.ErrLocked, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", adapter.ErrLocked, err)
	}
	return db, nil
}

func queryItemValue(db *sql.DB, table, key string) (string, bool) {
	var value string
	err := db.QueryRow(fmt.Sprintf("SELECT value FROM %s WHERE key = ?", table), key).Scan(&value)
	if err != nil {
		return "", false
	}
	return value, true
}

func queryItemPrefix(db *sql.DB, table, prefix string) map[string]string {
	out := make(map[string]string)
	rows, err := db.Query(fmt.Sprintf("SELECT key, value FROM %s WHERE key LIKE ?", table), prefix+"%")
	if err != nil {
		return out
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if rows.Scan(&k, &v) != nil {
			continue
		}
		out[k] = v
	}
	return out
}

// workspace is one discovered per-workspace database, with its
// decoded project path when workspace.json is present and readable.
type workspace struct {
	hash string
	dir  string
	path string // project path, "" if undetermined
}

func (a *Adapter) discoverWorkspaces() []workspace {
	entries, err := os.ReadDir(a.workspaceStorageDir)
	if err != nil {
		return nil
	}
	var out []workspace
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(a.workspaceStorageDir, e.Name())
		if _, err := os.Stat(filepath.Join(dir, "state.vscdb")); err != nil {
			continue
		}
		ws := workspace{hash: e.Name(), dir: dir}
		if data, err := os.ReadFile(filepath.Join(dir, "workspace.json")); err == nil {
			var manifest workspaceManifest
			if json.Unmarshal(data, &manifest) == nil {
				ws.path = decodeFolderURI(manifest.Folder)
			}
		}
		out = append(out, ws)
	}
	return out
}

func decodeFolderURI(folder string) string {
	if folder == "" {
		return ""
	}
	u, err := url.Parse(folder)
	if err != nil {
		return ""
	}
	p := u.Path
	if runtime.GOOS == "windows" {
		p = strings.TrimPrefix(p, "/")
	}
	decoded, err := url.PathUnescape(p)
	if err != nil {
		return p
	}
	return decoded
}

// resolveWorkspaces implements listSessions(projectPath)'s workspace
// resolution order: exact path match, hash-digest match, then (only
// when projectPath is given and nothing else matched) the single
// most-recently-modified database as a last-resort candidate.
func (a *Adapter) resolveWorkspaces(projectPath string) []workspace {
	all := a.discoverWorkspaces()
	if projectPath == "" {
		return all
	}
	clean := filepath.Clean(projectPath)
	var exact []workspace
	for _, ws := range all {
		if ws.path != "" && filepath.Clean(ws.path) == clean {
			exact = append(exact, ws)
		}
	}
	if len(exact) > 0 {
		return exact
	}
	var hashMatched []workspace
	for _, ws := range all {
		if pathhash.HashMatchesAny(clean, ws.hash) {
			hashMatched = append(hashMatched, ws)
		}
	}
	if len(hashMatched) > 0 {
		return hashMatched
	}
	return mostRecentlyModified(all)
}

func mostRecentlyModified(all []workspace) []workspace {
	var best workspace
	var bestTime time.Time
	found := false
	for _, ws := range all {
		info, err := os.Stat(filepath.Join(ws.dir, "state.vscdb"))
		if err != nil {
			continue
		}
		if !found || info.ModTime().After(bestTime) {
			best, bestTime, found = ws, info.ModTime(), true
		}
	}
	if !found {
		return nil
	}
	return []workspace{best}
}

// composerSummary is an intermediate session record before the
// global/workspace suppression rule is applied.
type composerSummary struct {
	composerID   string
	externalID   string // "<workspaceHash>:<composerId>" or "global:<composerId>"
	workspace    workspace
	isGlobal     bool
	createdAt    int64
	lastUpdateAt int64
	messageCount int
}

func (a *Adapter) ListSessions(ctx context.Context, projectPath string) ([]canonical.SessionInfo, error) {
	workspaces := a.resolveWorkspaces(projectPath)
	var summaries []composerSummary

	for _, ws := range workspaces {
		dbPath := filepath.Join(ws.dir, "state.vscdb")
		db, err := openReadOnly(dbPath)
		if err != nil {
			continue // transient: this workspace db unreadable, skip and continue
		}
		for _, m := range a.cachedManifests(db, dbPath, "ItemTable") {
			summaries = append(summaries, composerSummary{
				composerID:   m.ComposerID,
				externalID:   ws.hash + ":" + m.ComposerID,
				workspace:    ws,
				createdAt:    m.CreatedAt,
				lastUpdateAt: m.LastUpdatedAt,
				messageCount: bubbleCountForComposer(db, "ItemTable", m.ComposerID, m),
			})
		}
		db.Close()
	}

	globalDB, err := openReadOnly(a.globalDBPath)
	if err == nil {
		for _, m := range a.cachedManifests(globalDB, a.globalDBPath, "cursorDiskKV") {
			summaries = append(summaries, composerSummary{
				composerID:   m.ComposerID,
				externalID:   "global:" + m.ComposerID,
				isGlobal:     true,
				createdAt:    m.CreatedAt,
				lastUpdateAt: m.LastUpdatedAt,
				messageCount: bubbleCountForComposer(globalDB, "cursorDiskKV", m.ComposerID, m),
			})
		}
		globalDB.Close()
	}

	// Global entries that duplicate a workspace session are suppressed
	// from listings, but may raise the workspace entry's message count
	// when the global copy is ahead (spec.md §9 open question).
	byComposer := make(map[string]*composerSummary)
	var order []string
	for i := range summaries {
		s := &summaries[i]
		existing, ok := byComposer[s.composerID]
		if !ok {
			byComposer[s.composerID] = s
			order = append(order, s.composerID)
			continue
		}
		if s.isGlobal && !existing.isGlobal {
			if s.messageCount > existing.messageCount {
				existing.messageCount = s.messageCount
			}
			continue
		}
		if !s.isGlobal && existing.isGlobal {
			if existing.messageCount > s.messageCount {
				s.messageCount = existing.messageCount
			}
			byComposer[s.composerID] = s
			continue
		}
	}

	var infos []canonical.SessionInfo
	for _, id := range order {
		s := byComposer[id]
		info := canonical.SessionInfo{
			ID:           s.externalID,
			MessageCount: s.messageCount,
			ProjectPath:  s.workspace.path,
		}
		if s.createdAt > 0 {
			t := time.UnixMilli(s.createdAt)
			info.StartedAt = &t
		}
		if s.lastUpdateAt > 0 {
			t := time.UnixMilli(s.lastUpdateAt)
			info.LastActiveAt = &t
		}
		infos = append(infos, info)
	}

	sort.SliceStable(infos, func(i, j int) bool {
		ti, tj := infos[i].LastActiveAt, infos[j].LastActiveAt
		if ti == nil || tj == nil {
			return tj == nil && ti != nil
		}
		return ti.After(*tj)
	})
	return infos, nil
}

// readManifests reads every composer manifest from a database, trying
// the modern key first and falling back to the legacy tab-based shape.
func readManifests(db *sql.DB, table string) []composerManifest {
	if raw, ok := queryItemValue(db, table, modernManifestKey); ok {
		var wrapper composerDataWrapper
		if json.Unmarshal([]byte(raw), &wrapper) == nil && len(wrapper.AllComposers) > 0 {
			return wrapper.AllComposers
		}
	}
	if raw, ok := queryItemValue(db, table, legacyManifestKey); ok {
		var legacy legacyChatData
		if json.Unmarshal([]byte(raw), &legacy) == nil {
			var out []composerManifest
			for _, tab := range legacy.Tabs {
				out = append(out, composerManifest{ComposerID: tab.TabID, Conversation: tab.Conversation})
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	// Individual composerData:<id> entries, oldest schema variant.
	var out []composerManifest
	for key, raw := range queryItemPrefix(db, table, "composerData:") {
		var m composerManifest
		if json.Unmarshal([]byte(raw), &m) != nil {
			continue
		}
		if m.ComposerID == "" {
			m.ComposerID = strings.TrimPrefix(key, "composerData:")
		}
		out = append(out, m)
	}
	return out
}

func bubbleCountForComposer(db *sql.DB, table, composerID string, manifest composerManifest) int {
	if len(manifest.FullConversationHeadersOnly) > 0 {
		return len(manifest.FullConversationHeadersOnly)
	}
	if len(manifest.Conversation) > 0 {
		return len(manifest.Conversation)
	}
	rows := queryItemPrefix(db, table, "bubbleId:"+composerID+":")
	return len(rows)
}

func (a *Adapter) Capture(ctx context.Context, sessionID string) (*canonical.CanonicalSession, error) {
	hash, composerID, isGlobal, ok := splitExternalID(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: malformed cursor session id %q", adapter.ErrMalformed, sessionID)
	}

	var dbPath, table, projectPath string
	if isGlobal {
		dbPath, table = a.globalDBPath, "cursorDiskKV"
	} else {
		dbPath = filepath.Join(a.workspaceStorageDir, hash, "state.vscdb")
		table = "ItemTable"
		for _, ws := range a.discoverWorkspaces() {
			if ws.hash == hash {
				projectPath = ws.path
				break
			}
		}
	}

	db, err := openReadOnly(dbPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	manifest, ok := a.findManifest(db, dbPath, table, composerID)
	if !ok {
		return nil, adapter.ErrNotFound
	}

	messages := a.captureFallbackChain(db, table, composerID, manifest, isGlobal)

	if projectPath == "" {
		projectPath, _ = os.Getwd()
	}

	analysis := analyzer.Analyze(messages)
	var startedAt *time.Time
	if manifest.CreatedAt > 0 {
		t := time.UnixMilli(manifest.CreatedAt)
		startedAt = &t
	}

	session := &canonical.CanonicalSession{
		SchemaVersion:    canonical.SchemaVersion,
		Source:           canonical.SourceCursor,
		CapturedAt:       time.Now().UTC(),
		SessionID:        sessionID,
		SessionStartedAt: startedAt,
		Project:          canonical.ProjectContext{Path: projectPath},
		Conversation: canonical.Conversation{
			MessageCount:    len(messages),
			EstimatedTokens: estimateTokens(messages),
			Messages:        messages,
		},
		Decisions: analysis.Decisions,
		Blockers:  analysis.Blockers,
		Task: canonical.TaskState{
			Description: analysis.TaskDescription,
			Completed:   analysis.CompletedSteps,
		},
	}

	if err := canonical.Validate(session); err != nil {
		return nil, fmt.Errorf("%w: %v", adapter.ErrMalformed, err)
	}
	return session, nil
}

func (a *Adapter) CaptureLatest(ctx context.Context, projectPath string) (*canonical.CanonicalSession, error) {
	return adapter.CaptureLatest(ctx, a, projectPath)
}

func splitExternalID(sessionID string) (hash, composerID string, isGlobal bool, ok bool) {
	idx := strings.Index(sessionID, ":")
	if idx < 0 {
		return "", "", false, false
	}
	prefix, rest := sessionID[:idx], sessionID[idx+1:]
	if rest == "" {
		return "", "", false, false
	}
	if prefix == "global" {
		return "", rest, true, true
	}
	return prefix, rest, false, true
}

func (a *Adapter) findManifest(db *sql.DB, dbPath, table, composerID string) (composerManifest, bool) {
	for _, m := range a.cachedManifests(db, dbPath, table) {
		if m.ComposerID == composerID {
			return m, true
		}
	}
	return composerManifest{}, false
}

// captureFallbackChain implements the documented fallback order: live
// bubble rows -> manifest-embedded conversation -> the manifest's
// fullConversationHeadersOnly list (role only, empty content) -> (for
// a workspace capture) the global database's bubble
// rows for the same composer id. The first non-empty link wins.
func (a *Adapter) captureFallbackChain(db *sql.DB, table, composerID string, manifest composerManifest, isGlobal bool) []canonical.ConversationMessage {
	if msgs := bubbleRowsToMessages(db, table, composerID); len(msgs) > 0 {
		return msgs
	}
	if len(manifest.Conversation) > 0 {
		return bubblesToMessages(manifest.Conversation)
	}
	if len(manifest.FullConversationHeadersOnly) > 0 {
		var out []canonical.ConversationMessage
		for _, h := range manifest.FullConversationHeadersOnly {
			out = append(out, canonical.ConversationMessage{Role: roleFromBubbleType(h.Type), Content: ""})
		}
		return out
	}
	if !isGlobal {
		if globalDB, err := openReadOnly(a.globalDBPath); err == nil {
			defer globalDB.Close()
			if msgs := bubbleRowsToMessages(globalDB, "cursorDiskKV", composerID); len(msgs) > 0 {
				return msgs
			}
		}
	}
	return nil
}

func bubbleRowsToMessages(db *sql.DB, table, composerID string) []canonical.ConversationMessage {
	rows := queryItemPrefix(db, table, "bubbleId:"+composerID+":")
	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []canonical.ConversationMessage
	for _, k := range keys {
		var b bubbleData
		if json.Unmarshal([]byte(rows[k]), &b) != nil {
			continue
		}
		out = append(out, bubbleToMessage(b))
	}
	return out
}

func bubblesToMessages(bubbles []bubbleData) []canonical.ConversationMessage {
	out := make([]canonical.ConversationMessage, 0, len(bubbles))
	for _, b := range bubbles {
		out = append(out, bubbleToMessage(b))
	}
	return out
}

// bubbleToMessage extracts text preferring content -> text -> richText,
// falling back to a nested message.content traversal.
func bubbleToMessage(b bubbleData) canonical.ConversationMessage {
	text := extractBubbleText(b)
	var tsPtr *time.Time
	if b.Timestamp > 0 {
		t := time.UnixMilli(b.Timestamp)
		tsPtr = &t
	}
	return canonical.ConversationMessage{Role: roleFromBubbleType(b.Type), Content: text, ToolName: b.ToolName, Timestamp: tsPtr}
}

func extractBubbleText(b bubbleData) string {
	if len(b.Content) > 0 {
		var s string
		if json.Unmarshal(b.Content, &s) == nil && s != "" {
			return s
		}
	}
	if b.Text != "" {
		return b.Text
	}
	if len(b.RichText) > 0 {
		var s string
		if json.Unmarshal(b.RichText, &s) == nil && s != "" {
			return s
		}
	}
	if b.Message != nil && len(b.Message.Content) > 0 {
		var s string
		if json.Unmarshal(b.Message.Content, &s) == nil {
			return s
		}
	}
	return ""
}

func roleFromBubbleType(t int) canonical.Role {
	switch t {
	case 1:
		return canonical.RoleUser
	case 2:
		return canonical.RoleAssistant
	default:
		return canonical.RoleAssistant
	}
}

func estimateTokens(messages []canonical.ConversationMessage) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content) / 4
	}
	return total
}
