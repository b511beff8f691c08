package pagination

import (
	"net/url"
	"strconv"
	"strings"
)

// parseLinkHeader reads the pagination relations out of a Link header value:
//
//	<https://api.example.com/resource?page=2>; rel="next", <...?page=42>; rel="last"
//
// Only the subset the upstream emits is understood; unknown parameters are
// ignored.
func parseLinkHeader(value string) map[string]string {
	relations := make(map[string]string)

	for _, entry := range strings.Split(value, ",") {
		parts := strings.Split(entry, ";")
		if len(parts) < 2 {
			continue
		}

		target := strings.TrimSpace(parts[0])
		if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
			continue
		}
		target = target[1 : len(target)-1]

		for _, param := range parts[1:] {
			param = strings.TrimSpace(param)
			if rel, ok := strings.CutPrefix(param, "rel="); ok {
				relations[strings.Trim(rel, `"`)] = target
			}
		}
	}

	return relations
}

// lastPageNumber extracts the page number the rel="last" link points at.
// The second return is false when the header carries no last relation.
func lastPageNumber(linkHeader string) (int, bool, error) {
	target, ok := parseLinkHeader(linkHeader)["last"]
	if !ok {
		return 0, false, nil
	}

	u, err := url.Parse(target)
	if err != nil {
		return 0, true, err
	}
	page, err := strconv.Atoi(u.Query().Get("page"))
	if err != nil {
		return 0, true, err
	}
	return page, true, nil
}
