package forest

// Dictionary is the dataset-global table of unique strings. A string's
// position is its stable ID; IDs never change once assigned. Batches
// borrow the dictionary, they never own it.
type Dictionary struct {
	strings []string
	index   map[string]uint32
}

// NewDictionary returns an empty dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{index: make(map[string]uint32)}
}

// DictionaryFromStrings builds a dictionary over an existing ordered
// string table, as produced by the codec. Duplicate entries keep their
// first ID in the lookup index.
func DictionaryFromStrings(strings []string) *Dictionary {
	d := &Dictionary{
		strings: strings,
		index:   make(map[string]uint32, len(strings)),
	}
	for i, s := range strings {
		if _, ok := d.index[s]; !ok {
			d.index[s] = uint32(i)
		}
	}
	return d
}

// Intern returns the ID of s, assigning the next ID on first use.
func (d *Dictionary) Intern(s string) uint32 {
	if id, ok := d.index[s]; ok {
		return id
	}
	id := uint32(len(d.strings))
	d.strings = append(d.strings, s)
	d.index[s] = id
	return id
}

// Lookup returns the ID of s without interning.
func (d *Dictionary) Lookup(s string) (uint32, bool) {
	id, ok := d.index[s]
	return id, ok
}

// At returns the string with ID id.
func (d *Dictionary) At(id uint32) (string, bool) {
	if int(id) >= len(d.strings) {
		return "", false
	}
	return d.strings[id], true
}

// Len returns the number of entries.
func (d *Dictionary) Len() int { return len(d.strings) }

// Strings returns the ordered string table. Callers must not modify it.
func (d *Dictionary) Strings() []string { return d.strings }
