package loom_archiver

import (
	"github.com/alanbriolat/loom-archiver/util"
)

// ExtractID maps a share URL such as https://www.loom.com/share/{ID}?sid=... to its video identifier. It does no
// validation: malformed input gives a meaningless (possibly empty) identifier.
func ExtractID(sourceURL string) string {
	return util.TrailingSegment(sourceURL)
}
