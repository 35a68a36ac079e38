// Package msbuild maps a project file to its compiled build outputs: the
// assembly path, the dependency manifest (project.assets.json) and the
// target framework moniker.
package msbuild

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/V0v1kkk/DotNetMetadataMcpServer/internal/meta"
)

// DefaultConfiguration is used when the caller does not name one.
const DefaultConfiguration = "Debug"

// ErrProjectNotFound is returned when the project file does not exist.
var ErrProjectNotFound = errors.New("msbuild: project file not found")

// artifactExtensions are the recognized compiled-output extensions, in
// probe order.
var artifactExtensions = []string{".dll", ".exe"}

// Resolver evaluates project files. It keeps no evaluation state between
// calls; every Resolve parses the project file afresh.
type Resolver struct {
	log *zap.Logger
}

// NewResolver returns a Resolver logging through the given logger.
func NewResolver(log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{log: log}
}

// projectFile mirrors the subset of the csproj schema the resolver needs.
type projectFile struct {
	PropertyGroups []struct {
		TargetFramework  string `xml:"TargetFramework"`
		TargetFrameworks string `xml:"TargetFrameworks"`
		AssemblyName     string `xml:"AssemblyName"`
		OutputPath       string `xml:"OutputPath"`
		Configuration    string `xml:"Configuration"`
	} `xml:"PropertyGroup"`
}

type projectProps struct {
	targetFramework string
	assemblyName    string
	outputPath      string
}

// Resolve maps a project file plus a preferred build configuration to a
// ProjectResolution. Candidate configurations are tried in order
// (preferred, Release, Debug); the first with an existing artifact wins.
// When none exists the path for the preferred configuration is returned
// with a warning rather than an error.
func (r *Resolver) Resolve(projectPath, configuration string) (meta.ProjectResolution, error) {
	if configuration == "" {
		configuration = DefaultConfiguration
	}
	if _, err := os.Stat(projectPath); err != nil {
		return meta.ProjectResolution{}, fmt.Errorf("%w: %s", ErrProjectNotFound, projectPath)
	}

	props, err := r.evaluate(projectPath)
	if err != nil {
		return meta.ProjectResolution{}, err
	}

	projectDir := filepath.Dir(projectPath)
	resolution := meta.ProjectResolution{
		TargetFramework: props.targetFramework,
		Configuration:   configuration,
	}

	for _, candidate := range candidateConfigurations(configuration) {
		for _, ext := range artifactExtensions {
			path := artifactPath(projectDir, props, candidate, ext)
			if fileExists(path) {
				resolution.AssemblyPath = path
				resolution.Configuration = candidate
				break
			}
		}
		if resolution.AssemblyPath != "" {
			break
		}
	}
	if resolution.AssemblyPath == "" {
		// Best-guess degradation: no build output exists under any
		// candidate configuration.
		resolution.AssemblyPath = artifactPath(projectDir, props, configuration, artifactExtensions[0])
		r.log.Warn("no compiled artifact found for any configuration",
			zap.String("project", projectPath),
			zap.String("configuration", configuration),
			zap.String("assumedPath", resolution.AssemblyPath))
	}

	resolution.AssetsFilePath = findAssetsFile(projectDir, props.targetFramework)
	return resolution, nil
}

// candidateConfigurations builds the ordered, de-duplicated candidate
// list: preferred first, then Release, then Debug.
func candidateConfigurations(preferred string) []string {
	out := []string{preferred}
	for _, c := range []string{"Release", "Debug"} {
		if !strings.EqualFold(c, preferred) {
			out = append(out, c)
		}
	}
	return out
}

// evaluate parses the project file and flattens its property groups.
// Later groups win, matching MSBuild's last-definition semantics.
func (r *Resolver) evaluate(projectPath string) (projectProps, error) {
	data, err := os.ReadFile(projectPath)
	if err != nil {
		return projectProps{}, fmt.Errorf("msbuild: reading %s: %w", projectPath, err)
	}
	var pf projectFile
	if err := xml.Unmarshal(data, &pf); err != nil {
		return projectProps{}, fmt.Errorf("msbuild: parsing %s: %w", projectPath, err)
	}

	props := projectProps{
		assemblyName: strings.TrimSuffix(filepath.Base(projectPath), filepath.Ext(projectPath)),
	}
	for _, g := range pf.PropertyGroups {
		if v := strings.TrimSpace(g.TargetFramework); v != "" {
			props.targetFramework = v
		}
		if v := strings.TrimSpace(g.TargetFrameworks); v != "" && props.targetFramework == "" {
			// Multi-targeted project: take the first declared moniker.
			props.targetFramework = strings.TrimSpace(strings.Split(v, ";")[0])
		}
		if v := strings.TrimSpace(g.AssemblyName); v != "" {
			props.assemblyName = v
		}
		if v := strings.TrimSpace(g.OutputPath); v != "" {
			props.outputPath = filepath.FromSlash(strings.ReplaceAll(v, "\\", "/"))
		}
	}
	return props, nil
}

// artifactPath computes the expected compiled-output path for one
// configuration and extension following SDK output conventions.
func artifactPath(projectDir string, props projectProps, configuration, ext string) string {
	dir := props.outputPath
	if dir == "" {
		dir = filepath.Join("bin", configuration, props.targetFramework)
	}
	return filepath.Join(projectDir, dir, props.assemblyName+ext)
}

// findAssetsFile probes the target-framework-scoped manifest location
// first, then the plain obj location. Missing manifests are non-fatal.
func findAssetsFile(projectDir, targetFramework string) string {
	if targetFramework != "" {
		scoped := filepath.Join(projectDir, "obj", targetFramework, "project.assets.json")
		if fileExists(scoped) {
			return scoped
		}
	}
	plain := filepath.Join(projectDir, "obj", "project.assets.json")
	if fileExists(plain) {
		return plain
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
