package source

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/okian/zkpresence/internal/domain/model"
)

// ParseDataset decodes a season document: a JSON array of objects carrying
// username, mindshare and optional pfp and avatar. Entries that are not
// objects or have no string username are skipped. A numeric mindshare is
// kept as its literal text.
func ParseDataset(data []byte) (model.Dataset, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedDataset)
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsArray() {
		return nil, fmt.Errorf("%w: top-level value is not an array", ErrMalformedDataset)
	}

	ds := make(model.Dataset, 0, len(doc.Array()))
	doc.ForEach(func(_, entry gjson.Result) bool {
		if !entry.IsObject() {
			return true
		}
		username := entry.Get("username")
		if username.Type != gjson.String {
			return true
		}
		ds = append(ds, model.LeaderboardRecord{
			Username:  username.Str,
			Mindshare: mindshareText(entry.Get("mindshare")),
			PFP:       stringField(entry.Get("pfp")),
			Avatar:    stringField(entry.Get("avatar")),
		})
		return true
	})
	return ds, nil
}

func mindshareText(r gjson.Result) string {
	switch r.Type {
	case gjson.String:
		return r.Str
	case gjson.Number:
		return r.Raw
	default:
		return ""
	}
}

func stringField(r gjson.Result) string {
	if r.Type == gjson.String {
		return r.Str
	}
	return ""
}
