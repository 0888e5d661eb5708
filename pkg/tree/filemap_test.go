package tree

import (
	"encoding/json"
	"testing"
)

func TestFileMapJSONRoundTrip(t *testing.T) {
	original := NewFileMap()
	original.Set(FileRecord{RelativePath: "BepInEx/plugins/A.dll", Hash: "H_A"})
	original.Set(FileRecord{RelativePath: "BepInEx/plugins/sub", IsDirectory: true})

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	restored := NewFileMap()
	if err := json.Unmarshal(data, restored); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	if restored.Len() != 2 {
		t.Fatalf("expected 2 entries after round trip, got %d", restored.Len())
	}
	record, ok := restored.Get("BepInEx/plugins/A.dll")
	if !ok || record.Hash != "H_A" {
		t.Errorf("unexpected record after round trip: %+v, ok=%v", record, ok)
	}
}

func TestTreeMapJSONRoundTrip(t *testing.T) {
	original := NewTreeMap()
	original.Ensure("plugins").Set(FileRecord{RelativePath: "A.dll", Hash: "H_A"})

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var restored TreeMap
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	record, ok := restored.Get("plugins").Get("A.dll")
	if !ok || record.Hash != "H_A" {
		t.Errorf("unexpected record after round trip: %+v, ok=%v", record, ok)
	}
}
