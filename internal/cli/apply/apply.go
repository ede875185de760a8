package apply

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aryankumar/fleetgate/internal/cli/app"
	"github.com/aryankumar/fleetgate/internal/gateway"
	"github.com/aryankumar/fleetgate/internal/manifest"
	"github.com/spf13/cobra"
)

var resultColumns = []string{"kind", "namespace", "name", "state", "action", "resource_version", "message"}

// Document is one manifest document and where it came from
type Document struct {
	Source string
	Index  int
	Raw    []byte
}

type applyOptions struct {
	filename  string
	recursive bool
}

// NewApplyCmd creates the apply command
func NewApplyCmd() *cobra.Command {
	return newCmd(manifest.ModeApply, "apply", "Apply manifests to an environment",
		`Merge manifest documents into the live objects of one environment.

Objects that don't exist are created. Each document is applied on its own and
a rejected document doesn't stop the rest of the file.`,
		`  # Apply a manifest file
  fleetgate apply -e prod -f configmap.yaml

  # Apply every manifest under a directory tree
  fleetgate apply -e prod -f ./manifests/ -R

  # Apply a document edited from 'fleetgate get'
  fleetgate get cm settings -e prod -n web | fleetgate apply -e prod -f -`)
}

// NewCreateCmd creates the create command
func NewCreateCmd() *cobra.Command {
	return newCmd(manifest.ModeCreate, "create", "Create objects in an environment",
		`Create objects from manifest documents.

A document naming an object that already exists is rejected as a conflict and
the live object is left untouched.`,
		`  # Create the objects of a manifest file
  fleetgate create -e staging -f configmap.yaml`)
}

// NewReplaceCmd creates the replace command
func NewReplaceCmd() *cobra.Command {
	return newCmd(manifest.ModeReplace, "replace", "Replace objects in an environment",
		`Overwrite live objects with manifest documents.

A document carrying metadata.resourceVersion is only written if the live
object still has that version; a stale version is rejected as a conflict.`,
		`  # Replace an object fetched earlier
  fleetgate replace -e prod -f settings.yaml`)
}

func newCmd(mode manifest.Mode, use, short, long, example string) *cobra.Command {
	opts := &applyOptions{}

	cmd := &cobra.Command{
		Use:     use,
		Short:   short,
		Long:    long,
		Example: example,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd, mode, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.filename, "filename", "f", "", "manifest file or directory, or - for stdin (required)")
	cmd.Flags().BoolVarP(&opts.recursive, "recursive", "R", false, "process directories recursively")
	cmd.Flags().Bool("no-headers", false, "don't print table headers")
	_ = cmd.MarkFlagRequired("filename")

	return cmd
}

func runApply(cmd *cobra.Command, mode manifest.Mode, opts *applyOptions) error {
	envID, err := app.EnvID(cmd)
	if err != nil {
		return err
	}

	docs, err := readDocuments(opts.filename, opts.recursive, cmd.InOrStdin())
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no manifests found in %s", opts.filename)
	}

	a, err := app.Load(cmd)
	if err != nil {
		return err
	}
	formatter, err := app.Formatter(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := app.WithTimeout(cmd.Context())
	defer cancel()

	rows := make([]gateway.Resource, 0, len(docs))
	rejected := 0
	for _, doc := range docs {
		result, err := a.Manifests.Run(ctx, manifest.NewOperation(envID, mode, doc.Raw))
		if err != nil {
			rejected++
			slog.Debug("document rejected", "source", doc.Source, "index", doc.Index, "error", err)
		}
		rows = append(rows, resultRow(result))
	}

	if err := formatter.FormatResources(app.Out(cmd), resultColumns, rows); err != nil {
		return err
	}
	if rejected > 0 {
		return fmt.Errorf("%d of %d documents rejected", rejected, len(docs))
	}
	return nil
}

func resultRow(r *manifest.Result) gateway.Resource {
	return gateway.Resource{
		"kind":             string(r.Kind),
		"namespace":        r.Namespace,
		"name":             r.Name,
		"state":            string(r.State),
		"action":           string(r.Action),
		"resource_version": r.ResourceVersion,
		"message":          r.Message,
	}
}

// readDocuments loads the documents of a file, a directory or stdin ("-")
func readDocuments(path string, recursive bool, stdin io.Reader) ([]Document, error) {
	if path == "-" {
		return splitDocuments("stdin", stdin)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}
	if info.IsDir() {
		return readDocumentsFromDir(path, recursive)
	}
	return readDocumentsFromFile(path)
}

// readDocumentsFromDir reads every YAML/JSON file under dir in lexical order
func readDocumentsFromDir(dir string, recursive bool) ([]Document, error) {
	var docs []Document

	walkFunc := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if !recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			return nil
		}

		fileDocs, err := readDocumentsFromFile(path)
		if err != nil {
			return err
		}
		docs = append(docs, fileDocs...)
		return nil
	}

	if err := filepath.WalkDir(dir, walkFunc); err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}
	return docs, nil
}

func readDocumentsFromFile(path string) ([]Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return splitDocuments(path, file)
}

// splitDocuments splits a multi-document YAML stream read from source
func splitDocuments(source string, r io.Reader) ([]Document, error) {
	parts, err := manifest.SplitDocuments(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", source, err)
	}
	docs := make([]Document, 0, len(parts))
	for _, p := range parts {
		docs = append(docs, Document{Source: source, Index: p.Index, Raw: p.Raw})
	}
	return docs, nil
}
