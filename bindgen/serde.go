package bindgen

import (
	"os"
	"regexp"

	"github.com/accessful-ai/webrtc-audio-processing/errors"
)

// deriveBeforeItem matches a derive attribute directly followed by a public
// struct or enum declaration.
var deriveBeforeItem = regexp.MustCompile(
	`#\s*\[\s*derive\s*\((?P<d>[^)]+)\)\s*\]\s*pub\s*(?P<s>struct|enum)`)

const deriveWithSerde = "#[derive($d, Serialize, Deserialize)] pub $s"

// AddSerdeDerives returns src with the serde import prepended and Serialize
// and Deserialize appended to every derive list preceding a public struct or
// enum. Applying it twice appends the derives twice.
func AddSerdeDerives(src []byte) []byte {
	rewritten := deriveBeforeItem.ReplaceAll(src, []byte(deriveWithSerde))
	out := make([]byte, 0, len(SerdeImport)+1+len(rewritten))
	out = append(out, SerdeImport...)
	out = append(out, '\n')
	return append(out, rewritten...)
}

// AddSerialization rewrites the binding file at path in place with AddSerdeDerives.
func AddSerialization(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Patch(path, err)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return errors.Patch(path, err)
	}
	if err := os.WriteFile(path, AddSerdeDerives(src), info.Mode().Perm()); err != nil {
		return errors.Patch(path, err)
	}
	return nil
}
