package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/shader"
	"github.com/spf13/cobra"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema <shader>",
		Short: "Print the uniform schema reflected from a WGSL or GLSL shader",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			src, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			lang := shader.LanguageFromPath(path)
			s, err := shader.Extract(string(src), lang)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			return printSchema(cmd.OutOrStdout(), path, lang, s)
		},
	}
}

func printSchema(out io.Writer, path string, lang shader.Language, s *shader.Schema) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "shader:\t%s (%s)\n", path, lang)
	if s.UniformBlock != nil {
		b := s.UniformBlock
		fmt.Fprintf(tw, "uniforms:\t%s at group %d binding %d, %d bytes\n", b.Name, b.Group, b.Binding, b.Size)
	}

	if len(s.Entries) > 0 {
		fmt.Fprintln(tw, "\nNAME\tTYPE\tOFFSET\tGROUP\tDEFAULT")
		for _, e := range s.Entries {
			group := e.Group.String()
			if e.Global != shader.GlobalNone {
				group = "global " + e.Global.String()
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", e.Name, e.Type, e.Offset, group, formatDefault(e.Default))
		}
	}

	if len(s.Resources) > 0 {
		fmt.Fprintln(tw, "\nRESOURCE\tKIND\tGROUP\tBINDING")
		for _, r := range s.Resources {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", r.Name, r.Kind, r.Group, r.Binding)
		}
	}
	return tw.Flush()
}

func formatDefault(vals []float32) string {
	if len(vals) == 0 {
		return "-"
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return strings.Join(parts, " ")
}
