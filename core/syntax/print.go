package syntax

import (
	"fmt"
	"io"
	"strings"
)

// Fprint writes node to w as canonical shell source.
func Fprint(w io.Writer, node Node) error {
	p := &printer{}
	p.node(node)
	p.flushHereDocs()
	_, err := io.WriteString(w, p.sb.String())
	return err
}

// String returns the canonical source of node.
func String(node Node) string {
	var sb strings.Builder
	_ = Fprint(&sb, node)
	return sb.String()
}

type printer struct {
	sb       strings.Builder
	indent   int
	heredocs []*Redirect
}

func (p *printer) write(s string) {
	p.sb.WriteString(s)
}

func (p *printer) newline() {
	p.write("\n")
	p.flushHereDocs()
	p.write(strings.Repeat("\t", p.indent))
}

func (p *printer) flushHereDocs() {
	pending := p.heredocs
	p.heredocs = nil
	for _, r := range pending {
		if !strings.HasSuffix(p.sb.String(), "\n") {
			p.write("\n")
		}
		if r.HereDoc != nil {
			p.write(r.HereDoc.Raw)
		}
		p.write(r.Target.Unquoted())
		p.write("\n")
	}
}

func (p *printer) node(node Node) {
	switch n := node.(type) {
	case *Program:
		if n.Body != nil {
			p.lines(n.Body)
		}
		if !strings.HasSuffix(p.sb.String(), "\n") && p.sb.Len() > 0 {
			p.write("\n")
		}
	case *List:
		p.lines(n)
	case *AndOr:
		p.andOr(n)
	case *Pipeline:
		p.pipeline(n)
	case Command:
		p.command(n)
	case *Word:
		p.write(n.Raw)
	case *Redirect:
		p.redirect(n)
	default:
		panic(fmt.Sprintf("syntax: unknown node type %T", node))
	}
}

// lines prints one list item per line.
func (p *printer) lines(list *List) {
	for i, item := range list.Items {
		if i > 0 {
			p.newline()
		}
		p.andOr(item.AndOr)
		if item.Async {
			p.write(" &")
		}
	}
}

// inline prints a list on a single line separated by semicolons.
func (p *printer) inline(list *List) {
	for i, item := range list.Items {
		if i > 0 {
			p.write(" ")
		}
		p.andOr(item.AndOr)
		if item.Async {
			p.write(" &")
		} else if i < len(list.Items)-1 {
			p.write(";")
		}
	}
}

func (p *printer) block(list *List) {
	p.indent++
	p.newline()
	p.lines(list)
	p.indent--
	p.newline()
}

func (p *printer) andOr(ao *AndOr) {
	for i, pl := range ao.Pipelines {
		if i > 0 {
			p.write(" " + ao.Ops[i-1].String() + " ")
		}
		p.pipeline(pl)
	}
}

func (p *printer) pipeline(pl *Pipeline) {
	if pl.Bang {
		p.write("! ")
	}
	for i, cmd := range pl.Commands {
		if i > 0 {
			p.write(" | ")
		}
		p.command(cmd)
	}
}

func (p *printer) command(cmd Command) {
	switch c := cmd.(type) {
	case *SimpleCommand:
		var fields []string
		for _, as := range c.Assigns {
			fields = append(fields, as.Name+"="+as.Value.Raw)
		}
		for _, arg := range c.Args {
			fields = append(fields, arg.Raw)
		}
		p.write(strings.Join(fields, " "))
		for i, r := range c.Redirs {
			if i > 0 || len(fields) > 0 {
				p.write(" ")
			}
			p.redirect(r)
		}

	case *Redirected:
		p.command(c.Cmd)
		for _, r := range c.Redirs {
			p.write(" ")
			p.redirect(r)
		}

	case *BraceGroup:
		p.write("{")
		p.block(c.Body)
		p.write("}")

	case *Subshell:
		p.write("(")
		p.block(c.Body)
		p.write(")")

	case *IfClause:
		p.write("if ")
		p.inline(c.Cond)
		p.write("; then")
		p.block(c.Then)
		for _, elif := range c.Elifs {
			p.write("elif ")
			p.inline(elif.Cond)
			p.write("; then")
			p.block(elif.Then)
		}
		if c.Else != nil {
			p.write("else")
			p.block(c.Else)
		}
		p.write("fi")

	case *WhileClause:
		if c.Until {
			p.write("until ")
		} else {
			p.write("while ")
		}
		p.inline(c.Cond)
		p.write("; do")
		p.block(c.Body)
		p.write("done")

	case *ForClause:
		p.write("for " + c.Name)
		if c.In {
			p.write(" in")
			for _, w := range c.Items {
				p.write(" " + w.Raw)
			}
		}
		p.write("; do")
		p.block(c.Body)
		p.write("done")

	case *CaseClause:
		p.write("case " + c.Word.Raw + " in")
		p.indent++
		for _, item := range c.Items {
			p.newline()
			var pats []string
			for _, pat := range item.Patterns {
				pats = append(pats, pat.Raw)
			}
			p.write(strings.Join(pats, " | ") + ")")
			p.indent++
			if len(item.Body.Items) > 0 {
				p.newline()
				p.lines(item.Body)
			}
			p.newline()
			p.write(";;")
			p.indent--
		}
		p.indent--
		p.newline()
		p.write("esac")

	case *FuncDef:
		p.write(c.Name + "() ")
		p.command(c.Body)

	default:
		panic(fmt.Sprintf("syntax: unknown command type %T", cmd))
	}
}

func (p *printer) redirect(r *Redirect) {
	if r.Fd >= 0 {
		fmt.Fprintf(&p.sb, "%d", r.Fd)
	}
	p.write(r.Op.String())
	p.write(r.Target.Raw)
	if r.Op == DLess || r.Op == DLessDash {
		p.heredocs = append(p.heredocs, r)
	}
}
