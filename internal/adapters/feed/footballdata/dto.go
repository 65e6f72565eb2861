package footballdata

import (
	"strconv"
	"strings"

	"github.com/okian/scoreline/internal/domain/model"
)

type matchesEnvelope struct {
	Matches []apiMatch `json:"matches"`
}

type apiMatch struct {
	ID          int64  `json:"id"`
	UTCDate     string `json:"utcDate"`
	Status      string `json:"status"`
	Minute      minute `json:"minute"`
	Competition struct {
		Code string `json:"code"`
		Name string `json:"name"`
	} `json:"competition"`
	HomeTeam apiTeam  `json:"homeTeam"`
	AwayTeam apiTeam  `json:"awayTeam"`
	Score    apiScore `json:"score"`
}

type apiTeam struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type apiScore struct {
	FullTime struct {
		Home *int `json:"home"`
		Away *int `json:"away"`
	} `json:"fullTime"`
}

// minute tolerates null, numbers and strings such as "45+2".
type minute int

func (m *minute) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*m = 0
		return nil
	}
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		*m = 0
		return nil //nolint:nilerr // an unreadable clock is reported as 0
	}
	*m = minute(n)
	return nil
}

func (m *apiMatch) snapshot() model.Snapshot {
	id := ""
	if m.ID > 0 {
		id = strconv.FormatInt(m.ID, 10)
	}
	return model.Snapshot{
		ID:           id,
		Competition:  League(m.Competition.Code),
		HomeName:     m.HomeTeam.Name,
		AwayName:     m.AwayTeam.Name,
		HomeScore:    model.ScoreOrZero(m.Score.FullTime.Home),
		AwayScore:    model.ScoreOrZero(m.Score.FullTime.Away),
		ClockMinutes: int(m.Minute),
		Status:       MapStatus(m.Status),
	}
}

// MapStatus folds football-data.org phases onto the canonical ones.
// Postponed, cancelled and unknown phases map to StatusUnknown.
func MapStatus(s string) model.Status {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SCHEDULED", "TIMED":
		return model.StatusScheduled
	case "IN_PLAY", "PAUSED", "LIVE", "EXTRA_TIME", "PENALTY_SHOOTOUT", "SUSPENDED":
		return model.StatusLive
	case "FINISHED", "AWARDED":
		return model.StatusEnded
	default:
		return model.StatusUnknown
	}
}

// League returns the short league label for a competition code.
func League(code string) string {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "PD":
		return "laliga"
	case "PL":
		return "epl"
	case "CL":
		return "ucl"
	default:
		return strings.ToLower(strings.TrimSpace(code))
	}
}
