package collector

import (
	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/stract-search/searchcore/internal/schema"
)

const defaultSimhashHammingThreshold = 3

// Dedup applies the §4.5/§8 final dedup pass over items already sorted
// best-first: a later item colliding with an earlier (higher-ranked)
// item on any of the 4 exact keys (site, title, url, url-without-tld), or
// within simhashThreshold Hamming distance of a kept item's simhash, is
// dropped. A zero key or simhash counts as absent and never collides.
// Exact-key membership
// uses roaring64 bitmaps so repeated runs over large merged result sets
// stay sublinear in practice despite the large uint64 key space.
func Dedup(items []Item, simhashThreshold int) []Item {
	if simhashThreshold <= 0 {
		simhashThreshold = defaultSimhashHammingThreshold
	}
	seenSite := roaring64.New()
	seenTitle := roaring64.New()
	seenURL := roaring64.New()
	seenURLNoTLD := roaring64.New()
	var keptSimhashes []uint64

	out := make([]Item, 0, len(items))
	for _, item := range items {
		if collidesExact(item.Keys, seenSite, seenTitle, seenURL, seenURLNoTLD) {
			continue
		}
		if collidesSimhash(item.Keys.Simhash, keptSimhashes, simhashThreshold) {
			continue
		}
		seenSite.Add(item.Keys.Site)
		seenTitle.Add(item.Keys.Title)
		seenURL.Add(item.Keys.URL)
		seenURLNoTLD.Add(item.Keys.URLNoTLD)
		keptSimhashes = append(keptSimhashes, item.Keys.Simhash)
		out = append(out, item)
	}
	return out
}

func collidesExact(keys schema.DedupKeys, site, title, url, urlNoTLD *roaring64.Bitmap) bool {
	return (keys.Site != 0 && site.Contains(keys.Site)) ||
		(keys.Title != 0 && title.Contains(keys.Title)) ||
		(keys.URL != 0 && url.Contains(keys.URL)) ||
		(keys.URLNoTLD != 0 && urlNoTLD.Contains(keys.URLNoTLD))
}

func collidesSimhash(simhash uint64, kept []uint64, threshold int) bool {
	if simhash == 0 {
		return false
	}
	for _, k := range kept {
		if k != 0 && schema.HammingDistance64(simhash, k) <= threshold {
			return true
		}
	}
	return false
}
