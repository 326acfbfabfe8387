package model_test

import (
	"encoding/json"
	"testing"

	model "github.com/okian/zkpresence/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestPresenceResult(t *testing.T) {
	convey.Convey("Given a PresenceResult", t, func() {
		convey.Convey("When it is serialized", func() {
			r := model.PresenceResult{
				PFP:           "https://example.com/a.png",
				Username:      "Alice",
				Consistency:   100,
				Effectiveness: 67,
				UnionMaxi:     80,
				Score:         82,
			}
			raw, err := json.Marshal(r)

			convey.Convey("Then it should use the storage field names", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(raw), convey.ShouldEqual,
					`{"pfp":"https://example.com/a.png","username":"Alice","consistency":100,"effectiveness":67,"unionmaxi":80,"score":82}`)
			})
		})

		convey.Convey("When all stats are zero", func() {
			r := model.PresenceResult{Username: "ghost", PFP: "x"}

			convey.Convey("Then it should report the not-found shape", func() {
				convey.So(r.IsZero(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When any stat is set", func() {
			r := model.PresenceResult{Effectiveness: 33}

			convey.Convey("Then it should not be zero", func() {
				convey.So(r.IsZero(), convey.ShouldBeFalse)
			})
		})
	})
}

func TestCaseFor(t *testing.T) {
	convey.Convey("Given dataset membership flags", t, func() {
		convey.So(model.CaseFor(false, false), convey.ShouldEqual, model.CaseNone)
		convey.So(model.CaseFor(true, false), convey.ShouldEqual, model.CaseS0Only)
		convey.So(model.CaseFor(false, true), convey.ShouldEqual, model.CaseS1Only)
		convey.So(model.CaseFor(true, true), convey.ShouldEqual, model.CaseBoth)
	})
}

func TestLeaderboardRecordDecode(t *testing.T) {
	convey.Convey("Given a leaderboard JSON row", t, func() {
		raw := `{"username":"Bob","mindshare":"4.25%","avatar":"https://a/b.png"}`

		convey.Convey("When decoding it", func() {
			var rec model.LeaderboardRecord
			err := json.Unmarshal([]byte(raw), &rec)

			convey.Convey("Then optional image fields should be preserved", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(rec.Username, convey.ShouldEqual, "Bob")
				convey.So(rec.Mindshare, convey.ShouldEqual, "4.25%")
				convey.So(rec.PFP, convey.ShouldEqual, "")
				convey.So(rec.Avatar, convey.ShouldEqual, "https://a/b.png")
			})
		})
	})
}
