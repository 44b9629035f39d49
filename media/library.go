package media

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/SirZenith/lazyimg/common"
)

// LoadLibrary reads a JSON file containing an array of Info and returns them
// as a MapLookup.
func LoadLibrary(filePath string) (MapLookup, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("can't read media library %s: %s", filePath, err)
	}

	list := []Info{}
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("unable to parse media library %s: %s", filePath, err)
	}

	library := MapLookup{}
	for i := range list {
		info := list[i]

		if strings.TrimSpace(info.Ref) == "" {
			return nil, fmt.Errorf("media entry %d contains no reference", i)
		}

		info.Extension = common.GetStrOr(common.NormalizeImageFormat(info.Extension), common.GetURLImageFormat(info.URL))
		library[info.Ref] = info
	}

	return library, nil
}

// SaveLibrary writes media list to a JSON file.
func SaveLibrary(filePath string, list []Info) error {
	data, err := json.MarshalIndent(list, "", "    ")
	if err != nil {
		return fmt.Errorf("JSON conversion failed: %s", err)
	}

	err = os.WriteFile(filePath, data, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write media library: %s", err)
	}

	return nil
}
