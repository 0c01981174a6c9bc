package record

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var identityPattern = regexp.MustCompile(`^(.+)_(\d{8}_\d{6})_(\d{6})(?:_\d+)?$`)

// ParseIdentity splits an identity, or a log filename built from one, into its
// class and capture time. Stamps are UTC.
func ParseIdentity(name string) (class string, at time.Time, err error) {
	name = strings.TrimSuffix(name, filepath.Ext(name))
	m := identityPattern.FindStringSubmatch(name)
	if m == nil {
		return "", time.Time{}, fmt.Errorf("invalid identity: %s", name)
	}

	at, err = time.ParseInLocation(stampLayout, m[2], time.UTC)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to parse timestamp: %w", err)
	}
	micro, _ := strconv.Atoi(m[3])
	return m[1], at.Add(time.Duration(micro) * time.Microsecond), nil
}
