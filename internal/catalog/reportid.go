package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// Separator joins a source id and a source-local report id.
const Separator = "_"

var (
	ErrMalformedReportID = errors.New("malformed report id")
	ErrInvalidSourceID   = errors.New("invalid source id")
)

// SplitReportID splits a composite report id at the first separator.
func SplitReportID(reportID string) (sourceID, localID string, err error) {
	sourceID, localID, ok := strings.Cut(reportID, Separator)
	if !ok || sourceID == "" {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedReportID, reportID)
	}
	return sourceID, localID, nil
}

// JoinReportID builds the composite id of localID within sourceID.
func JoinReportID(sourceID, localID string) string {
	return sourceID + Separator + localID
}

// ValidateSourceID checks that id can be used to route composite report ids.
func ValidateSourceID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSourceID)
	}
	if strings.Contains(id, Separator) {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidSourceID, id, Separator)
	}
	return nil
}
