package service

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// invitingUsersKey is the set of uids with at least one outstanding invitation
const invitingUsersKey = "invitation:uids"

// inviteeSetKey holds the emails one inviter has outstanding
func inviteeSetKey(uid int32) string {
	return fmt.Sprintf("invitation:uid:%d", uid)
}

// invitedRecordKey holds the JSON invitation record for (inviter, email)
func invitedRecordKey(uid int32, email string) string {
	return fmt.Sprintf("invitation:uid:%d:invited:%s", uid, email)
}

// tokenSetKey holds every outstanding token issued to an email
func tokenSetKey(email string) string {
	return "invitation:invited:" + email
}

// tokenKey holds the expiring invitation hash for a token
func tokenKey(token string) string {
	return "invitation:token:" + token
}

func formatUID(uid int32) string {
	return strconv.FormatInt(int64(uid), 10)
}

func parseUID(s string) (int32, error) {
	uid, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(uid), nil
}

// recordToken extracts the token from an (inviter, email) record. Records
// written by older deployments hold the bare token rather than JSON.
func recordToken(raw string) string {
	if raw == "" {
		return ""
	}
	var rec struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return raw
	}
	return rec.Token
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
	`\`, "&#x5C;",
	"`", "&#96;",
)

// escapeEmail makes a stored email safe to render as HTML text
func escapeEmail(email string) string {
	return htmlEscaper.Replace(email)
}
