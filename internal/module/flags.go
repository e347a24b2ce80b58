package module

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// flagSet builds the command-line parser for a module's options.
func (b *Base) flagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(b.desc.Name, pflag.ContinueOnError)
	fs.SetOutput(b.env.Out)
	fs.SortFlags = false

	for _, opt := range b.desc.Options {
		switch opt.Kind {
		case Bool:
			fs.BoolP(opt.Name, opt.Short, false, opt.Help)
		case List:
			fs.StringArrayP(opt.Name, opt.Short, nil, opt.Help)
		default:
			fs.StringP(opt.Name, opt.Short, "", opt.Help)
		}
	}
	fs.Usage = func() { b.printUsage(b.env.Out, fs) }
	return fs
}

// applyFlags copies every option given on the command line over the values
// collected so far.
func (b *Base) applyFlags(fs *pflag.FlagSet) error {
	for _, opt := range b.desc.Options {
		if !fs.Changed(opt.Name) {
			continue
		}
		switch opt.Kind {
		case Bool:
			v, err := fs.GetBool(opt.Name)
			if err != nil {
				return err
			}
			b.values[opt.Name] = strconv.FormatBool(v)
		case List:
			v, err := fs.GetStringArray(opt.Name)
			if err != nil {
				return err
			}
			b.values[opt.Name] = strings.Join(v, ",")
		default:
			v, err := fs.GetString(opt.Name)
			if err != nil {
				return err
			}
			b.values[opt.Name] = v
		}
	}
	return nil
}

// validateValues checks typed options hold values of their type.
func (b *Base) validateValues() error {
	for _, opt := range b.desc.Options {
		v := b.values[opt.Name]
		if v == "" {
			continue
		}
		switch opt.Kind {
		case Bool:
			if _, err := strconv.ParseBool(v); err != nil {
				return fmt.Errorf("option '%s' expects a boolean, got '%s'", opt.Name, v)
			}
		case Int:
			if _, err := strconv.Atoi(v); err != nil {
				return fmt.Errorf("option '%s' expects an integer, got '%s'", opt.Name, v)
			}
		}
	}
	return nil
}

func (b *Base) printUsage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintf(w, "\n%s - %s\n\nUsage:\n  cipipe [global options] %s [options]\n", b.desc.Name, b.desc.Description, b.desc.Name)
	if len(b.desc.Options) > 0 {
		fmt.Fprintf(w, "\nOptions:\n%s", fs.FlagUsages())
	}
	if len(b.desc.Shared) > 0 {
		fmt.Fprintf(w, "\nShared functions:\n  %s\n", strings.Join(b.desc.Shared, "\n  "))
	}
	if len(b.desc.Requires) > 0 {
		fmt.Fprintf(w, "\nRequires:\n  %s\n", strings.Join(b.desc.Requires, "\n  "))
	}
}
