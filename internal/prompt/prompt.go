// Package prompt renders the interactive prompt from a PS1-style template.
package prompt

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"psh/internal/env"
)

// Info is what a template can refer to.
type Info struct {
	User string
	Host string
	Cwd  string
	Home string
	Root bool
}

// Current collects Info for the running shell.
func Current(e env.Environment) Info {
	info := Info{User: "username", Host: "hostname", Cwd: "?"}
	info.Home, _ = e.Get("HOME")

	if curUser, err := user.Current(); err == nil {
		info.User = curUser.Username
		info.Root = curUser.Uid == "0"
	}

	if curHostName, err := os.Hostname(); err == nil {
		info.Host, _, _ = strings.Cut(curHostName, ".")
	}

	if curCwd, err := os.Getwd(); err == nil {
		info.Cwd = curCwd
	}

	return info
}

// dir is the working directory with the home directory shown as "~".
func (i Info) dir() string {
	if i.Home == "" || i.Home == "/" {
		return i.Cwd
	}
	if i.Cwd == i.Home {
		return "~"
	}
	if strings.HasPrefix(i.Cwd, i.Home+"/") {
		return "~" + i.Cwd[len(i.Home):]
	}
	return i.Cwd
}

var (
	userStyle = []color.Attribute{color.FgGreen, color.Bold}
	dirStyle  = []color.Attribute{color.FgBlue, color.Bold}
)

func paint(s string, colored bool, attrs []color.Attribute) string {
	c := color.New(attrs...)
	if colored {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(s)
}

// Render expands template. Supported escapes:
//
//	\u  user name        \h  host name
//	\w  working dir      \W  last element of the working dir
//	\$  '#' for root, else '$'
//	\n  newline          \\  backslash
//
// Any other backslash sequence is kept as is.
func Render(template string, info Info, colored bool) string {
	var b strings.Builder

	for i := 0; i < len(template); i++ {
		c := template[i]
		if c != '\\' || i+1 == len(template) {
			b.WriteByte(c)
			continue
		}

		i++
		switch template[i] {
		case 'u':
			b.WriteString(paint(info.User, colored, userStyle))
		case 'h':
			b.WriteString(paint(info.Host, colored, userStyle))
		case 'w':
			b.WriteString(paint(info.dir(), colored, dirStyle))
		case 'W':
			base := info.dir()
			if base != "~" && base != "/" {
				base = filepath.Base(base)
			}
			b.WriteString(paint(base, colored, dirStyle))
		case '$':
			if info.Root {
				b.WriteByte('#')
			} else {
				b.WriteByte('$')
			}
		case 'n':
			b.WriteByte('\n')
		case '\\':
			b.WriteByte('\\')
		default:
			b.WriteByte('\\')
			b.WriteByte(template[i])
		}
	}

	return b.String()
}
