package urllist

import "github.com/crawlserv/crawlserv/store"

// byLastCrawled is a container/heap ordering of recrawl candidates, the
// oldest lock (nil locktime sorts oldest of all) popped first. Adapted
// from the teacher's PriorityURL (cassandra/priorityurl.go), which heaps
// walker.URL by LastCrawled; this heaps store.LastCrawledRow by locktime
// since crawlserv tracks "last processed" via the lock row rather than a
// dedicated timestamp field on the URL itself.
type byLastCrawled []store.LastCrawledRow

func (pq byLastCrawled) Len() int { return len(pq) }

func (pq byLastCrawled) Less(i, j int) bool {
	li, lj := pq[i].LockTime, pq[j].LockTime
	if li == nil {
		return lj != nil || pq[i].URLID < pq[j].URLID
	}
	if lj == nil {
		return false
	}
	if li.Equal(*lj) {
		return pq[i].URLID < pq[j].URLID
	}
	return li.Before(*lj)
}

func (pq byLastCrawled) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }

func (pq *byLastCrawled) Push(x interface{}) {
	*pq = append(*pq, x.(store.LastCrawledRow))
}

func (pq *byLastCrawled) Pop() interface{} {
	old := *pq
	n := len(old)
	x := old[n-1]
	*pq = old[0 : n-1]
	return x
}
