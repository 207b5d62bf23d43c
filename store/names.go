package store

import (
	"fmt"
	"regexp"

	"github.com/crawlserv/crawlserv"
	"github.com/crawlserv/crawlserv/errs"
)

// TablePrefix is prepended to every generated table name. Exported so
// operators sharing a schema with other applications can namespace it.
var TablePrefix = "crawlserv"

var namespaceRe = regexp.MustCompile(`^[A-Za-z0-9$_]+$`)

// validateNamespace enforces spec.md §3's Website/UrlList namespace pattern.
func validateNamespace(op, ns string) error {
	if !namespaceRe.MatchString(ns) {
		return errs.New(errs.InvalidInput, op, fmt.Sprintf("namespace %q does not match [A-Za-z0-9$_]+", ns))
	}
	return nil
}

func listTableName(websiteNS, listNS string) string {
	return fmt.Sprintf("%s_%s_%s", TablePrefix, websiteNS, listNS)
}

func crawlingLockTableName(websiteNS, listNS string) string { return listTableName(websiteNS, listNS) + "_crawling" }
func parsingLockTableName(websiteNS, listNS string) string  { return listTableName(websiteNS, listNS) + "_parsing" }
func extractingLockTableName(websiteNS, listNS string) string {
	return listTableName(websiteNS, listNS) + "_extracting"
}
func analyzingLockTableName(websiteNS, listNS string) string {
	return listTableName(websiteNS, listNS) + "_analyzing"
}
func contentTableName(websiteNS, listNS string) string { return listTableName(websiteNS, listNS) + "_crawled" }

// lockTableName resolves the per-module lock table for a list, the single
// switch every urllist operation goes through.
func lockTableName(websiteNS, listNS string, module crawlserv.Module) string {
	switch module {
	case crawlserv.ModuleCrawler:
		return crawlingLockTableName(websiteNS, listNS)
	case crawlserv.ModuleParser:
		return parsingLockTableName(websiteNS, listNS)
	case crawlserv.ModuleExtractor:
		return extractingLockTableName(websiteNS, listNS)
	case crawlserv.ModuleAnalyzer:
		return analyzingLockTableName(websiteNS, listNS)
	default:
		panic(fmt.Sprintf("store: unknown module %q", module))
	}
}

// targetTableName names a dynamic parser/extractor/analyzer output table:
// "<prefix>_<website-ns>_<list-ns>_<type>_<name>".
func targetTableName(websiteNS, listNS, tableType, name string) string {
	return fmt.Sprintf("%s_%s_%s_%s", listTableName(websiteNS, listNS), tableType, name)
}
