// Package crawlserv holds the data model and static configuration shared by
// every component of the platform: storage (store), the URL-list engine
// (urllist), the thread supervisor (thread), the crawler/parser/extractor/
// analyzer modules, the Markov generator (markov) and the control surface
// (control).
package crawlserv
