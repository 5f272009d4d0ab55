package intent

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// keywordFile is the YAML schema for keyword overrides. Each entry
// replaces the default keyword set for one rule; absent entries keep
// their defaults. Rule priority itself is fixed and not configurable.
type keywordFile struct {
	Greetings []string `yaml:"greetings"`
	Exits     []string `yaml:"exits"`
	Show      []string `yaml:"show"`
	ShowAll   []string `yaml:"show_all"`
	New       []string `yaml:"new"`
	Modify    []string `yaml:"modify"`
	Approve   []string `yaml:"approve"`
	Analytics []string `yaml:"analytics"`
	Summary   []string `yaml:"summary"`
	Creative  []string `yaml:"creative"`
}

// LoadKeywords merges keyword overrides from all YAML files in dir.
// A missing directory is not an error; malformed files are skipped
// with a log line.
func (p *Parser) LoadKeywords(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("[Intent] Cannot read rule file %s: %v", path, err)
			continue
		}
		var kf keywordFile
		if err := yaml.Unmarshal(data, &kf); err != nil {
			log.Printf("[Intent] Malformed rule file %s: %v", path, err)
			continue
		}
		p.apply(kf)
		log.Printf("[Intent] Loaded keyword overrides from %s", name)
	}
	return nil
}

func (p *Parser) apply(kf keywordFile) {
	override(&p.greetings, kf.Greetings)
	override(&p.exits, kf.Exits)
	override(&p.showKws, kf.Show)
	override(&p.showAllKws, kf.ShowAll)
	override(&p.newKws, kf.New)
	override(&p.modifyKws, kf.Modify)
	override(&p.approveKws, kf.Approve)
	override(&p.analyticsKw, kf.Analytics)
	override(&p.summaryKws, kf.Summary)
	override(&p.creativeKws, kf.Creative)
}

func override(dst *[]string, src []string) {
	if len(src) > 0 {
		lowered := make([]string, len(src))
		for i, kw := range src {
			lowered[i] = strings.ToLower(kw)
		}
		*dst = lowered
	}
}
