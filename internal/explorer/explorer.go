// Package explorer ties the resolver, sandbox and extractor together:
// one call resolves a project to its compiled artifact, loads it into a
// fresh sandbox and walks its public surface. Calls are independent;
// nothing is cached between them.
package explorer

import (
	"path/filepath"

	"go.uber.org/zap"

	"github.com/V0v1kkk/DotNetMetadataMcpServer/internal/extract"
	"github.com/V0v1kkk/DotNetMetadataMcpServer/internal/meta"
	"github.com/V0v1kkk/DotNetMetadataMcpServer/internal/msbuild"
	"github.com/V0v1kkk/DotNetMetadataMcpServer/internal/sandbox"
)

// Explorer performs full project-to-records extraction. Safe for
// concurrent use: every call owns its sandbox exclusively.
type Explorer struct {
	resolver  *msbuild.Resolver
	extractor *extract.Extractor
	log       *zap.Logger
}

// New creates an Explorer.
func New(log *zap.Logger) *Explorer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Explorer{
		resolver:  msbuild.NewResolver(log),
		extractor: extract.New(log),
		log:       log,
	}
}

// FromProject resolves the project and extracts its public type surface.
// A missing project file fails; a missing artifact degrades to an empty
// result from the load step.
func (x *Explorer) FromProject(projectPath, configuration string) ([]meta.TypeRecord, meta.ProjectResolution, error) {
	resolution, err := x.resolver.Resolve(projectPath, configuration)
	if err != nil {
		return nil, meta.ProjectResolution{}, err
	}
	records, err := x.FromAssembly(resolution.AssemblyPath)
	return records, resolution, err
}

// FromAssembly loads one compiled artifact into a disposable sandbox and
// walks it. The sandbox is released on every exit path; afterwards the
// artifact can be rebuilt or deleted without a sharing violation.
func (x *Explorer) FromAssembly(assemblyPath string) ([]meta.TypeRecord, error) {
	sb := sandbox.New(filepath.Dir(assemblyPath), x.log)
	defer sb.Close()

	if sb.MarkProcessed(assemblyPath) {
		return []meta.TypeRecord{}, nil
	}
	img, err := sb.LoadPrimary(assemblyPath)
	if err != nil {
		x.log.Error("primary image failed to load",
			zap.String("path", assemblyPath),
			zap.Error(err))
		return []meta.TypeRecord{}, err
	}
	return x.extractor.Types(img, sb), nil
}
