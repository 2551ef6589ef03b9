package scopvk

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	CONFIG = "Config"
	WINDOW = "Window"
)

//Defines the core usage properties and expected usage patterns. Corresponds to JSON object notation:
//
//	{"Name": "Config", "String": {"Display": "Window"}, "Int": {"Width": 800}, "Bool": {...}, "Float": {...}, "Linked": {...}}
//
//A linked usage chains a further property layout, for example per-instance overrides.
type Usage struct {
	Name         string
	String_props map[string]string
	Int_props    map[string]int
	Bool_props   map[string]bool
	Float_props  map[string]float32
	Linked_usage *Usage
}

func NewUsage(name string, default_size uint) *Usage {
	var use Usage
	use.Name = name
	use.String_props = make(map[string]string, default_size)
	use.Int_props = make(map[string]int, default_size)
	use.Bool_props = make(map[string]bool, default_size)
	use.Float_props = make(map[string]float32, default_size)
	return &use
}

//DefaultUsage returns the configuration the renderer runs with when no file is given
func DefaultUsage() *Usage {
	u := NewUsage(CONFIG, 16)
	u.String_props["Display"] = WINDOW
	u.String_props["Title"] = "scopvk"
	u.String_props["PresentMode"] = "fifo"
	u.String_props["LogLevel"] = "info"
	u.String_props["LogFile"] = ""
	u.String_props["LogFormat"] = "text"
	u.String_props["VertexShader"] = "shaders/vert.spv"
	u.String_props["FragmentShader"] = "shaders/frag.spv"
	u.Int_props["Width"] = 800
	u.Int_props["Height"] = 600
	u.Int_props["FramesInFlight"] = 3
	u.Int_props["MaxMaterialInstances"] = 16
	u.Int_props["BindingsPerInstance"] = 1
	u.Bool_props["Validation"] = false
	u.Float_props["BlendRate"] = 1.0
	return u
}

//ParseUsage reads a usage tree from JSON. Keys absent from the document keep
//their defaults when the result is merged with Merge.
func ParseUsage(data []byte) (*Usage, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("usage: invalid JSON document")
	}
	return parseUsage(gjson.ParseBytes(data))
}

func parseUsage(doc gjson.Result) (*Usage, error) {
	if !doc.IsObject() {
		return nil, errors.Newf("usage: expected object, got %s", doc.Type)
	}
	name := doc.Get("Name").String()
	if name == "" {
		name = CONFIG
	}
	u := NewUsage(name, 8)
	var err error
	doc.Get("String").ForEach(func(k, v gjson.Result) bool {
		if v.Type != gjson.String {
			err = errors.Newf("usage %s: String.%s is %s", name, k.String(), v.Type)
			return false
		}
		u.String_props[k.String()] = v.String()
		return true
	})
	doc.Get("Int").ForEach(func(k, v gjson.Result) bool {
		if v.Type != gjson.Number {
			err = errors.Newf("usage %s: Int.%s is %s", name, k.String(), v.Type)
			return false
		}
		u.Int_props[k.String()] = int(v.Int())
		return true
	})
	doc.Get("Bool").ForEach(func(k, v gjson.Result) bool {
		if v.Type != gjson.True && v.Type != gjson.False {
			err = errors.Newf("usage %s: Bool.%s is %s", name, k.String(), v.Type)
			return false
		}
		u.Bool_props[k.String()] = v.Bool()
		return true
	})
	doc.Get("Float").ForEach(func(k, v gjson.Result) bool {
		if v.Type != gjson.Number {
			err = errors.Newf("usage %s: Float.%s is %s", name, k.String(), v.Type)
			return false
		}
		u.Float_props[k.String()] = float32(v.Float())
		return true
	})
	if err != nil {
		return nil, err
	}
	if linked := doc.Get("Linked"); linked.Exists() {
		next, err := parseUsage(linked)
		if err != nil {
			return nil, err
		}
		u.Linked_usage = next
	}
	return u, nil
}

//LoadUsage reads path and merges it over DefaultUsage
func LoadUsage(path string) (*Usage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "usage: reading %s", path)
	}
	file, err := ParseUsage(data)
	if err != nil {
		return nil, errors.Wrapf(err, "usage: parsing %s", path)
	}
	return DefaultUsage().Merge(file), nil
}

//Merge copies every property of other over u and returns u
func (u *Usage) Merge(other *Usage) *Usage {
	if other == nil {
		return u
	}
	for k, v := range other.String_props {
		u.String_props[k] = v
	}
	for k, v := range other.Int_props {
		u.Int_props[k] = v
	}
	for k, v := range other.Bool_props {
		u.Bool_props[k] = v
	}
	for k, v := range other.Float_props {
		u.Float_props[k] = v
	}
	if other.Linked_usage != nil {
		u.Linked_usage = other.Linked_usage
	}
	return u
}

//JSON serializes the usage tree in the layout ParseUsage accepts
func (u *Usage) JSON() ([]byte, error) {
	doc := []byte(`{}`)
	var err error
	set := func(path string, v interface{}) {
		if err == nil {
			doc, err = sjson.SetBytes(doc, path, v)
		}
	}
	set("Name", u.Name)
	for _, k := range sortedKeys(u.String_props) {
		set("String."+escapeKey(k), u.String_props[k])
	}
	for _, k := range sortedKeys(u.Int_props) {
		set("Int."+escapeKey(k), u.Int_props[k])
	}
	for _, k := range sortedKeys(u.Bool_props) {
		set("Bool."+escapeKey(k), u.Bool_props[k])
	}
	for _, k := range sortedKeys(u.Float_props) {
		set("Float."+escapeKey(k), u.Float_props[k])
	}
	if err != nil {
		return nil, errors.Wrap(err, "usage: encoding")
	}
	if u.HasNext() {
		linked, err := u.Linked_usage.JSON()
		if err != nil {
			return nil, err
		}
		if doc, err = sjson.SetRawBytes(doc, "Linked", linked); err != nil {
			return nil, errors.Wrap(err, "usage: encoding linked usage")
		}
	}
	return doc, nil
}

func escapeKey(k string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`)
	return r.Replace(k)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (u *Usage) String(key, def string) string {
	if v, ok := u.String_props[key]; ok {
		return v
	}
	return def
}

func (u *Usage) Int(key string, def int) int {
	if v, ok := u.Int_props[key]; ok {
		return v
	}
	return def
}

func (u *Usage) Bool(key string, def bool) bool {
	if v, ok := u.Bool_props[key]; ok {
		return v
	}
	return def
}

func (u *Usage) Float(key string, def float32) float32 {
	if v, ok := u.Float_props[key]; ok {
		return v
	}
	return def
}

func (u *Usage) HasNext() bool {
	return u.Linked_usage != nil
}

func (u *Usage) GetLinkedUsage() (*Usage, error) {
	if !u.HasNext() {
		return nil, errors.Newf("properties %s has no linked usage", u.Name)
	}
	return u.Linked_usage, nil
}

//Prints usage tree
func (u *Usage) Print() {
	fmt.Println(u.Name, u.String_props, u.Bool_props, u.Int_props, u.Float_props)
	if u.HasNext() {
		u.Linked_usage.Print()
	}
}
