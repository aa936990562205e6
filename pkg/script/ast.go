package script

// Node is an expression in the parsed tree.
type Node interface {
	Pos() int
}

type (
	// NumberLit is a real literal.
	NumberLit struct {
		At    int
		Value float64
	}
	// ImagLit is an imaginary literal such as 2j.
	ImagLit struct {
		At    int
		Value float64
	}
	// StringLit is a quoted string.
	StringLit struct {
		At    int
		Value string
	}
	// Ident is a name looked up in the environment.
	Ident struct {
		At   int
		Name string
	}
	// Unary is -x, +x or not x.
	Unary struct {
		At int
		Op TokenType
		X  Node
	}
	// Binary is an arithmetic, comparison or logical operation.
	Binary struct {
		At   int
		Op   TokenType
		L, R Node
	}
	// Call is f(args...).
	Call struct {
		At   int
		Fn   Node
		Args []Node
	}
	// Subscript is x[index] where index may be a Slice.
	Subscript struct {
		At    int
		X     Node
		Index Node
	}
	// Slice is start:stop:step inside a subscript; nil parts are omitted.
	Slice struct {
		At                int
		Start, Stop, Step Node
	}
	// ListLit is [a, b, ...].
	ListLit struct {
		At    int
		Items []Node
	}
)

func (n *NumberLit) Pos() int { return n.At }
func (n *ImagLit) Pos() int   { return n.At }
func (n *StringLit) Pos() int { return n.At }
func (n *Ident) Pos() int     { return n.At }
func (n *Unary) Pos() int     { return n.At }
func (n *Binary) Pos() int    { return n.At }
func (n *Call) Pos() int      { return n.At }
func (n *Subscript) Pos() int { return n.At }
func (n *Slice) Pos() int     { return n.At }
func (n *ListLit) Pos() int   { return n.At }
