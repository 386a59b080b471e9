package extractor

// Chunk kinds.
const (
	KindFunction = "function"
	KindClass    = "class"
	KindModule   = "module"
	KindForm     = "form"
)

// Key is the composite identity of a function inside one codebase.
// Two functions with the same name in different files are different keys.
type Key struct {
	Name     string `json:"name"`
	Filepath string `json:"filepath"`
}

func (k Key) String() string {
	return k.Filepath + "::" + k.Name
}

// CodeChunk is a contiguous span of source text for one function,
// procedure, method, class header or form descriptor.
type CodeChunk struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Class         string   `json:"class,omitempty"`
	Filepath      string   `json:"filepath"`
	Language      string   `json:"language"`
	Kind          string   `json:"kind"`
	StartLine     int      `json:"start_line"`
	EndLine       int      `json:"end_line"`
	Content       string   `json:"content"`
	ContentHash   string   `json:"content_hash"`
	Truncated     bool     `json:"truncated,omitempty"`
	EventHandlers []string `json:"event_handlers,omitempty"`
}

// Key returns the (name, file) identity of the chunk.
func (c *CodeChunk) Key() Key {
	return Key{Name: c.Name, Filepath: c.Filepath}
}

// QualifiedName is Class.Name for members and Name otherwise.
func (c *CodeChunk) QualifiedName() string {
	if c.Class != "" {
		return c.Class + "." + c.Name
	}
	return c.Name
}

// IsForm reports whether the chunk is a declarative UI descriptor.
func (c *CodeChunk) IsForm() bool {
	return c.Kind == KindForm
}
