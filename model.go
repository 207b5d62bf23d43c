package crawlserv

import "time"

// Website is the top-level tenant: a domain (or cross-domain list owner)
// identified by a SQL-safe Namespace that becomes part of every dependent
// table name.
type Website struct {
	ID            uint64
	Domain        string // empty means cross-domain
	Namespace     string // matches [A-Za-z0-9$_]+, unique across websites
	Name          string
	DataDirectory string // optional, empty means inline storage only
}

// CrossDomain reports whether this website's lists hold absolute,
// protocol-stripped URLs rather than sub-URLs.
func (w Website) CrossDomain() bool { return w.Domain == "" }

// UrlList is one crawlable collection of URLs belonging to a Website.
// Creating one provisions the six dependent tables named
// "<website-ns>_<list-ns>[_suffix]": the URL table, content table, and the
// four per-module lock tables.
type UrlList struct {
	ID        uint64
	WebsiteID uint64
	Namespace string // unique per website
	Name      string
}

// URLRow is one URL belonging to a UrlList.
type URLRow struct {
	ID     uint64
	URL    string // <= 2000 bytes; sub-URL or absolute-without-protocol
	Hash   uint32 // CRC32(URL), indexed, non-unique
	Manual bool   // true if inserted by an operator rather than discovered
}

// Content is one crawl/archive result for a URL. Multiple rows per URL are
// allowed; rows are append-only.
type Content struct {
	ID        uint64
	URLID     uint64
	CrawlTime time.Time
	Archived  bool
	Response  uint16
	Type      string
	Content   []byte
}

// Module names the per-URL lock table / thread kind a component belongs to.
type Module string

const (
	ModuleCrawler   Module = "crawler"
	ModuleParser    Module = "parser"
	ModuleExtractor Module = "extractor"
	ModuleAnalyzer  Module = "analyzer"
)

// LockRow is one per-URL progress/lock marker for a given Module.
type LockRow struct {
	URLID     uint64
	LockTime  *time.Time // nil means not held
	Success   bool
}

// Lockable reports whether this row can currently be acquired: locktime is
// nil or strictly in the past.
func (l LockRow) Lockable(now time.Time) bool {
	return l.LockTime == nil || l.LockTime.Before(now)
}

// QueryType enumerates the supported query engines for Query.Text.
type QueryType string

const (
	QueryXPath QueryType = "xpath"
	QueryRegex QueryType = "regex"
)

// Query is an operator-declared XPath/RegEx expression, optionally scoped to
// one website (WebsiteID == 0 means global).
type Query struct {
	ID        uint64
	WebsiteID uint64
	Name      string
	Text      string
	Type      QueryType
	ResultBool   bool // query.Evaluate should be interpreted as boolean
	ResultSingle bool // first match only
	ResultMulti  bool // all matches
	TextOnly     bool // strip markup, evaluate against visible text only
}

// Configuration is an operator-declared JSON blob scoped to one module of
// one website.
type Configuration struct {
	ID        uint64
	WebsiteID uint64
	Module    Module
	Name      string
	JSON      []byte
}

// ThreadStatus is the persisted lifecycle state of a Thread row.
type ThreadStatus string

const (
	ThreadNew         ThreadStatus = "new"
	ThreadRunning     ThreadStatus = "running"
	ThreadPaused      ThreadStatus = "paused"
	ThreadStopping    ThreadStatus = "stopping"
	ThreadStopped     ThreadStatus = "stopped"
	ThreadInterrupted ThreadStatus = "interrupted"
)

// Thread is a long-lived worker bound to one {module, website, list, config}.
type Thread struct {
	ID        uint64
	Module    Module
	WebsiteID uint64
	ListID    uint64
	ConfigID  uint64
	Status    ThreadStatus
	Message   string
	Paused    bool
	Last      uint64 // monotone progress cursor, the last processed URL id
	Runtime   time.Duration
	PauseTime time.Duration
}

// LogEntry is one UTF-8-scrubbed log line attributed to a module.
type LogEntry struct {
	ID     uint64
	Module Module
	Entry  string
}
