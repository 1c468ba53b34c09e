// Package export writes a question pack: a zip archive with the rendered
// student-facing text of every question plus a manifest describing the
// pack's contents.
package export

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/testbank/internal/bank"
	"github.com/felixgeelhaar/testbank/internal/question"
)

// ManifestName is the archive entry describing the pack.
const ManifestName = "manifest.yaml"

type manifestQuestion struct {
	Name string `yaml:"name"`
	Tag  string `yaml:"tag"`
	Kind string `yaml:"kind"`
	File string `yaml:"file"`
}

type manifestGroup struct {
	Name    string   `yaml:"name"`
	Pick    int      `yaml:"pick"`
	Members []string `yaml:"members"`
}

type manifest struct {
	Generated time.Time          `yaml:"generated"`
	Questions []manifestQuestion `yaml:"questions"`
	Groups    []manifestGroup    `yaml:"groups,omitempty"`
}

// Write renders every question of the bank into w as a zip archive.
// Grouped questions live under a directory per group, the rest under
// questions/.
func Write(w io.Writer, b *bank.Bank, now time.Time) error {
	zw := zip.NewWriter(w)

	grouped := map[*question.Question]string{}
	for _, g := range b.Groups() {
		for q := range g.All() {
			if _, taken := grouped[q]; !taken {
				grouped[q] = g.Name
			}
		}
	}

	m := manifest{Generated: now.UTC()}

	for _, q := range b.Questions() {
		dir := "questions"
		if g, ok := grouped[q]; ok {
			dir = path.Join("groups", g)
		}
		file := path.Join(dir, q.Name+".md")

		text, err := q.Render()
		if err != nil {
			return fmt.Errorf("rendering %s: %w", q.Name, err)
		}
		if err := writeEntry(zw, file, []byte(text)); err != nil {
			return err
		}
		m.Questions = append(m.Questions, manifestQuestion{
			Name: q.Name,
			Tag:  q.Tag(),
			Kind: string(q.Kind),
			File: file,
		})
	}

	for _, g := range b.Groups() {
		mg := manifestGroup{Name: g.Name, Pick: g.Pick}
		for q := range g.All() {
			mg.Members = append(mg.Members, q.Name)
		}
		m.Groups = append(m.Groups, mg)
	}

	blob, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := writeEntry(zw, ManifestName, blob); err != nil {
		return err
	}

	return zw.Close()
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	f, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}
