package gameapi

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Text is a JSON scalar kept in its textual form. The upstream APIs are not
// consistent about quoting numbers, so ids, counters and timestamps are
// decoded into Text and rendered as-is.
type Text string

// UnmarshalJSON accepts strings, numbers, booleans and null.
func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*t = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		*t = Text(b)
	}
	return nil
}

// Or returns t, or def when t is empty.
func (t Text) Or(def string) string {
	if t == "" {
		return def
	}
	return string(t)
}

// Int parses t as an integer.
func (t Text) Int() (int64, bool) {
	n, err := strconv.ParseInt(string(t), 10, 64)
	return n, err == nil
}

// LikeResult is the answer of the like endpoint. Status 1 is success and
// status 2 means the target already received its daily maximum.
type LikeResult struct {
	Status         int    `json:"status"`
	PlayerNickname string `json:"PlayerNickname"`
	UID            Text   `json:"UID"`
	LikesBefore    Text   `json:"LikesbeforeCommand"`
	LikesGiven     int    `json:"LikesGivenByAPI"`
	LikesAfter     Text   `json:"LikesafterCommand"`
	Message        string `json:"message"`
}

// SpamResult is the answer of the friend-request endpoint.
type SpamResult struct {
	Status         string `json:"status"`
	FriendRequests struct {
		Successful int `json:"successful"`
		Failed     int `json:"failed"`
	} `json:"friend_requests"`
}

// VisitResult is the answer of the visit endpoint.
type VisitResult struct {
	Status         string `json:"status"`
	PlayerNickname string `json:"PlayerNickname"`
	UID            Text   `json:"UID"`
	SuccessVisits  int    `json:"success_visits"`
	FailureVisits  int    `json:"failure_visits"`
}

// SearchResult is the answer of the nickname search endpoint.
type SearchResult struct {
	Count   int            `json:"count"`
	Message string         `json:"message"`
	Players []SearchPlayer `json:"players"`
}

// SearchPlayer is one nickname search hit.
type SearchPlayer struct {
	AccountID Text   `json:"account_id"`
	Nickname  string `json:"nickname"`
	Region    Text   `json:"region"`
	Level     Text   `json:"level"`
	LastLogin Text   `json:"last_login"`
}

// PlayerInfo is what LookupPlayer learns about a uid.
type PlayerInfo struct {
	UID      string
	Nickname string
	Region   string

	// BanKnown is false when the ban check could not be completed.
	BanKnown bool
	Banned   bool
	// BanMonths is 0 for an indefinite ban.
	BanMonths int
}

// Profile is the answer of the player-info endpoint.
type Profile struct {
	Error        string        `json:"error"`
	PlayerInfo   *PlayerDetail `json:"player_info"`
	WorkshopMaps []struct {
		Code Text `json:"Code"`
	} `json:"workshop_maps"`
}

// PlayerDetail groups the profile sections.
type PlayerDetail struct {
	Basic   BasicInfo   `json:"basicInfo"`
	Captain CaptainInfo `json:"captainBasicInfo"`
	Clan    struct {
		Name      Text `json:"clanName"`
		ID        Text `json:"clanId"`
		Level     Text `json:"clanLevel"`
		MemberNum Text `json:"memberNum"`
	} `json:"clanBasicInfo"`
	Pet struct {
		Selected bool `json:"isSelected"`
		Name     Text `json:"name"`
		Type     Text `json:"type"`
		Exp      Text `json:"exp"`
		Level    Text `json:"level"`
	} `json:"petInfo"`
	Social struct {
		Signature Text `json:"signature"`
	} `json:"socialInfo"`
	Profile struct {
		AvatarID      Text   `json:"avatarId"`
		EquipedSkills []Text `json:"equipedSkills"`
	} `json:"profileInfo"`
	Credit struct {
		Score Text `json:"creditScore"`
	} `json:"creditScoreInfo"`
}

// BasicInfo is the account section of a profile.
type BasicInfo struct {
	Nickname        Text `json:"nickname"`
	Level           Text `json:"level"`
	Exp             Text `json:"exp"`
	Region          Text `json:"region"`
	Liked           Text `json:"liked"`
	Title           Text `json:"title"`
	ReleaseVersion  Text `json:"releaseVersion"`
	HasElitePass    bool `json:"hasElitePass"`
	BadgeCnt        Text `json:"badgeCnt"`
	RankingPoints   Text `json:"rankingPoints"`
	CsRank          Text `json:"csRank"`
	CsRankingPoints Text `json:"csRankingPoints"`
	CreateAt        Text `json:"createAt"`
	LastLoginAt     Text `json:"lastLoginAt"`
	BannerID        Text `json:"bannerId"`
	PinID           Text `json:"pinId"`
	PrimeLevel      struct {
		Level Text `json:"level"`
	} `json:"primeLevel"`
}

// CaptainInfo is the guild leader section of a profile.
type CaptainInfo struct {
	Nickname        Text `json:"nickname"`
	AccountID       Text `json:"accountId"`
	Level           Text `json:"level"`
	Exp             Text `json:"exp"`
	CreateAt        Text `json:"createAt"`
	LastLoginAt     Text `json:"lastLoginAt"`
	Title           Text `json:"title"`
	BadgeCnt        Text `json:"badgeCnt"`
	RankingPoints   Text `json:"rankingPoints"`
	CsRank          Text `json:"csRank"`
	CsRankingPoints Text `json:"csRankingPoints"`
}
