// Package vast provides AST printing functionality
package vast

import (
	"fmt"
	"io"
	"strings"
)

// Printer outputs the AST as Verilog source
type Printer struct {
	w      io.Writer
	indent int
}

// NewPrinter creates a new AST printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, indent: 0}
}

// PrintSource prints every module of a compilation unit
func (p *Printer) PrintSource(src *Source) {
	for i, m := range src.Modules {
		if i > 0 {
			fmt.Fprintln(p.w)
		}
		p.PrintModule(m)
	}
}

func (p *Printer) writeIndent() {
	fmt.Fprint(p.w, strings.Repeat("  ", p.indent))
}

// PrintModule prints a single module definition
func (p *Printer) PrintModule(m *Module) {
	fmt.Fprintf(p.w, "module %s", m.Name)
	if len(m.Params) > 0 {
		fmt.Fprint(p.w, " #(")
		for i, pd := range m.Params {
			if i > 0 {
				fmt.Fprint(p.w, ", ")
			}
			fmt.Fprint(p.w, paramHeader(pd))
		}
		fmt.Fprint(p.w, ")")
	}
	fmt.Fprintf(p.w, "(%s);\n", strings.Join(m.Ports, ", "))
	p.indent++
	for _, it := range m.Items {
		p.printItem(it)
	}
	p.indent--
	fmt.Fprintln(p.w, "endmodule")
}

func paramHeader(pd ParamDecl) string {
	var sb strings.Builder
	if pd.Local {
		sb.WriteString("localparam ")
	} else {
		sb.WriteString("parameter ")
	}
	if pd.Integer {
		sb.WriteString("integer ")
	}
	if pd.Signed {
		sb.WriteString("signed ")
	}
	if pd.Range != nil {
		sb.WriteString(rangeString(*pd.Range))
		sb.WriteString(" ")
	}
	fmt.Fprintf(&sb, "%s = %s", pd.Name, ExprString(pd.Value))
	return sb.String()
}

func rangeString(r Range) string {
	return fmt.Sprintf("[%s:%s]", ExprString(r.MSB), ExprString(r.LSB))
}

func (p *Printer) printItem(it Item) {
	switch i := it.(type) {
	case Decl:
		p.writeIndent()
		fmt.Fprintf(p.w, "%s;\n", declString(i))
	case ParamDecl:
		p.writeIndent()
		fmt.Fprintf(p.w, "%s;\n", paramHeader(i))
	case ContinuousAssign:
		p.writeIndent()
		fmt.Fprint(p.w, "assign ")
		if i.Delay != nil {
			fmt.Fprintf(p.w, "#%s ", ExprString(i.Delay))
		}
		fmt.Fprintf(p.w, "%s = %s;\n", ExprString(i.LHS), ExprString(i.RHS))
	case Always:
		p.writeIndent()
		fmt.Fprint(p.w, i.Kind.String())
		if len(i.Sens.List) > 0 {
			fmt.Fprintf(p.w, " @(%s)", sensString(i.Sens))
		}
		p.printBody(i.Body)
	case Initial:
		p.writeIndent()
		fmt.Fprint(p.w, "initial")
		p.printBody(i.Body)
	case Instance:
		p.printInstance(i)
	case Generate:
		p.writeIndent()
		fmt.Fprintln(p.w, "generate")
		p.indent++
		for _, sub := range i.Items {
			p.printItem(sub)
		}
		p.indent--
		p.writeIndent()
		fmt.Fprintln(p.w, "endgenerate")
	case GenBlock:
		p.writeIndent()
		p.printGenBlock(i)
	case GenFor:
		p.writeIndent()
		fmt.Fprintf(p.w, "for (%s; %s; %s) ", assignmentString(i.Init), ExprString(i.Cond), assignmentString(i.Step))
		p.printGenBlock(i.Body)
	case GenIf:
		p.writeIndent()
		fmt.Fprintf(p.w, "if (%s) ", ExprString(i.Cond))
		p.printGenBlock(i.Then)
		if i.Else != nil {
			p.writeIndent()
			fmt.Fprint(p.w, "else ")
			p.printGenBlock(*i.Else)
		}
	case GenCase:
		p.writeIndent()
		fmt.Fprintf(p.w, "case (%s)\n", ExprString(i.Expr))
		p.indent++
		for _, ci := range i.Items {
			p.writeIndent()
			fmt.Fprintf(p.w, "%s: ", caseLabels(ci.Exprs))
			p.printGenBlock(ci.Body)
		}
		p.indent--
		p.writeIndent()
		fmt.Fprintln(p.w, "endcase")
	case Function:
		p.printFunction(i)
	case Task:
		p.printTask(i)
	case Defparam:
		p.writeIndent()
		fmt.Fprintf(p.w, "defparam %s = %s;\n", ExprString(i.Target), ExprString(i.Value))
	default:
		p.writeIndent()
		fmt.Fprintf(p.w, "/* unknown item %T */\n", it)
	}
}

func declString(d Decl) string {
	var sb strings.Builder
	for i, k := range d.Kinds {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(k.String())
	}
	if d.Signed {
		sb.WriteString(" signed")
	}
	if d.Range != nil {
		sb.WriteString(" ")
		sb.WriteString(rangeString(*d.Range))
	}
	for i, n := range d.Names {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(" ")
		sb.WriteString(n.Name)
		for _, dim := range n.Dims {
			sb.WriteString(rangeString(dim))
		}
		if n.Init != nil {
			sb.WriteString(" = ")
			sb.WriteString(ExprString(n.Init))
		}
	}
	return sb.String()
}

func sensString(s SensList) string {
	parts := make([]string, 0, len(s.List))
	for _, e := range s.List {
		switch e.Edge {
		case EdgeAll:
			parts = append(parts, "*")
		case EdgePos, EdgeNeg:
			parts = append(parts, e.Edge.String()+" "+ExprString(e.Sig))
		default:
			parts = append(parts, ExprString(e.Sig))
		}
	}
	return strings.Join(parts, " or ")
}

func assignmentString(a Assignment) string {
	if a.Nonblocking {
		return fmt.Sprintf("%s <= %s", ExprString(a.LHS), ExprString(a.RHS))
	}
	return fmt.Sprintf("%s = %s", ExprString(a.LHS), ExprString(a.RHS))
}

func caseLabels(exprs []Expr) string {
	if exprs == nil {
		return "default"
	}
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = ExprString(e)
	}
	return strings.Join(parts, ", ")
}

func (p *Printer) printGenBlock(b GenBlock) {
	fmt.Fprint(p.w, "begin")
	if b.Name != "" {
		fmt.Fprintf(p.w, " : %s", b.Name)
	}
	fmt.Fprintln(p.w)
	p.indent++
	for _, it := range b.Items {
		p.printItem(it)
	}
	p.indent--
	p.writeIndent()
	fmt.Fprintln(p.w, "end")
}

func (p *Printer) printInstance(i Instance) {
	p.writeIndent()
	fmt.Fprint(p.w, i.Module)
	if len(i.Params) > 0 {
		fmt.Fprint(p.w, " #(")
		for j, pa := range i.Params {
			if j > 0 {
				fmt.Fprint(p.w, ", ")
			}
			if pa.Name != "" {
				fmt.Fprintf(p.w, ".%s(%s)", pa.Name, ExprString(pa.Value))
			} else {
				fmt.Fprint(p.w, ExprString(pa.Value))
			}
		}
		fmt.Fprint(p.w, ")")
	}
	if i.Name != "" {
		fmt.Fprintf(p.w, " %s", i.Name)
	}
	if i.Array != nil {
		fmt.Fprint(p.w, rangeString(*i.Array))
	}
	fmt.Fprint(p.w, " (")
	for j, pa := range i.Ports {
		if j > 0 {
			fmt.Fprint(p.w, ", ")
		}
		val := ""
		if pa.Value != nil {
			val = ExprString(pa.Value)
		}
		if pa.Name != "" {
			fmt.Fprintf(p.w, ".%s(%s)", pa.Name, val)
		} else {
			fmt.Fprint(p.w, val)
		}
	}
	fmt.Fprintln(p.w, ");")
}

func (p *Printer) printFunction(f Function) {
	p.writeIndent()
	fmt.Fprint(p.w, "function ")
	if f.Automatic {
		fmt.Fprint(p.w, "automatic ")
	}
	if f.Integer {
		fmt.Fprint(p.w, "integer ")
	}
	if f.Signed {
		fmt.Fprint(p.w, "signed ")
	}
	if f.Range != nil {
		fmt.Fprintf(p.w, "%s ", rangeString(*f.Range))
	}
	fmt.Fprintf(p.w, "%s;\n", f.Name)
	p.indent++
	for _, d := range f.Ports {
		p.writeIndent()
		fmt.Fprintf(p.w, "%s;\n", declString(d))
	}
	for _, d := range f.Decls {
		p.printItem(d)
	}
	p.writeIndent()
	p.printStmt(f.Body)
	p.indent--
	p.writeIndent()
	fmt.Fprintln(p.w, "endfunction")
}

func (p *Printer) printTask(t Task) {
	p.writeIndent()
	fmt.Fprint(p.w, "task ")
	if t.Automatic {
		fmt.Fprint(p.w, "automatic ")
	}
	fmt.Fprintf(p.w, "%s;\n", t.Name)
	p.indent++
	for _, d := range t.Ports {
		p.writeIndent()
		fmt.Fprintf(p.w, "%s;\n", declString(d))
	}
	for _, d := range t.Decls {
		p.printItem(d)
	}
	p.writeIndent()
	p.printStmt(t.Body)
	p.indent--
	p.writeIndent()
	fmt.Fprintln(p.w, "endtask")
}

// printBody prints a process body on the same line as its header
func (p *Printer) printBody(s Stmt) {
	fmt.Fprint(p.w, " ")
	p.printStmt(s)
}

// printStmt prints a statement starting at the current column; the caller writes the indent
func (p *Printer) printStmt(stmt Stmt) {
	switch s := stmt.(type) {
	case nil:
		fmt.Fprintln(p.w, ";")
	case Block:
		fmt.Fprint(p.w, "begin")
		if s.Name != "" {
			fmt.Fprintf(p.w, " : %s", s.Name)
		}
		fmt.Fprintln(p.w)
		p.indent++
		for _, d := range s.Decls {
			p.printItem(d)
		}
		for _, sub := range s.Stmts {
			p.writeIndent()
			p.printStmt(sub)
		}
		p.indent--
		p.writeIndent()
		fmt.Fprintln(p.w, "end")
	case If:
		fmt.Fprintf(p.w, "if (%s) ", ExprString(s.Cond))
		p.printStmt(s.Then)
		if s.Else != nil {
			p.writeIndent()
			fmt.Fprint(p.w, "else ")
			p.printStmt(s.Else)
		}
	case Case:
		fmt.Fprintf(p.w, "%s (%s)\n", s.Kind, ExprString(s.Expr))
		p.indent++
		for _, ci := range s.Items {
			p.writeIndent()
			fmt.Fprintf(p.w, "%s: ", caseLabels(ci.Exprs))
			p.printStmt(ci.Body)
		}
		p.indent--
		p.writeIndent()
		fmt.Fprintln(p.w, "endcase")
	case For:
		fmt.Fprintf(p.w, "for (%s; %s; %s) ", assignmentString(s.Init), ExprString(s.Cond), assignmentString(s.Step))
		p.printStmt(s.Body)
	case While:
		fmt.Fprintf(p.w, "while (%s) ", ExprString(s.Cond))
		p.printStmt(s.Body)
	case RepeatStmt:
		fmt.Fprintf(p.w, "repeat (%s) ", ExprString(s.Count))
		p.printStmt(s.Body)
	case Forever:
		fmt.Fprint(p.w, "forever ")
		p.printStmt(s.Body)
	case Wait:
		fmt.Fprintf(p.w, "wait (%s) ", ExprString(s.Cond))
		p.printStmt(s.Body)
	case Fork:
		fmt.Fprintln(p.w, "fork")
		p.indent++
		for _, sub := range s.Stmts {
			p.writeIndent()
			p.printStmt(sub)
		}
		p.indent--
		p.writeIndent()
		fmt.Fprintln(p.w, "join")
	case Disable:
		fmt.Fprintf(p.w, "disable %s;\n", s.Name)
	case BlockingAssign:
		fmt.Fprintf(p.w, "%s = %s%s;\n", ExprString(s.LHS), delayPrefix(s.Delay), ExprString(s.RHS))
	case NonblockingAssign:
		fmt.Fprintf(p.w, "%s <= %s%s;\n", ExprString(s.LHS), delayPrefix(s.Delay), ExprString(s.RHS))
	case DelayStmt:
		fmt.Fprintf(p.w, "#%s ", ExprString(s.Delay))
		p.printStmt(s.Body)
	case EventStmt:
		fmt.Fprintf(p.w, "@(%s) ", sensString(s.Sens))
		p.printStmt(s.Body)
	case SysTaskCall:
		fmt.Fprintf(p.w, "%s%s;\n", s.Name, argList(s.Args))
	case TaskCall:
		fmt.Fprintf(p.w, "%s%s;\n", s.Name, argList(s.Args))
	case NullStmt:
		fmt.Fprintln(p.w, ";")
	default:
		fmt.Fprintf(p.w, "/* unknown stmt %T */\n", stmt)
	}
}

func delayPrefix(d Expr) string {
	if d == nil {
		return ""
	}
	return "#" + ExprString(d) + " "
}

func argList(args []Expr) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = ExprString(a)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// ExprString renders an expression as Verilog source
func ExprString(e Expr) string {
	switch x := e.(type) {
	case nil:
		return ""
	case Ident:
		return x.Name
	case HierRef:
		parts := make([]string, len(x.Parts))
		for i, hp := range x.Parts {
			parts[i] = hp.Name
			if hp.Index != nil {
				parts[i] += "[" + ExprString(hp.Index) + "]"
			}
		}
		return strings.Join(parts, ".")
	case IntConst:
		return x.Literal
	case FloatConst:
		return x.Literal
	case StringConst:
		return fmt.Sprintf("%q", x.Value)
	case Unary:
		return x.Op.String() + ExprString(x.X)
	case Binary:
		return fmt.Sprintf("%s %s %s", ExprString(x.X), x.Op, ExprString(x.Y))
	case Cond:
		return fmt.Sprintf("%s ? %s : %s", ExprString(x.Cond), ExprString(x.Then), ExprString(x.Else))
	case Concat:
		return "{" + joinExprs(x.Items) + "}"
	case Repeat:
		return "{" + ExprString(x.Count) + "{" + joinExprs(x.Items) + "}}"
	case Index:
		return fmt.Sprintf("%s[%s]", ExprString(x.X), ExprString(x.Index))
	case PartSelect:
		return fmt.Sprintf("%s[%s:%s]", ExprString(x.X), ExprString(x.MSB), ExprString(x.LSB))
	case IndexedPartSelect:
		op := "+:"
		if x.Down {
			op = "-:"
		}
		return fmt.Sprintf("%s[%s %s %s]", ExprString(x.X), ExprString(x.Base), op, ExprString(x.Width))
	case Call:
		return x.Name + "(" + joinExprs(x.Args) + ")"
	case SysCall:
		return x.Name + argList(x.Args)
	case Paren:
		return "(" + ExprString(x.X) + ")"
	}
	return fmt.Sprintf("/* %T */", e)
}

func joinExprs(es []Expr) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = ExprString(e)
	}
	return strings.Join(parts, ", ")
}
