package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/metafirst/supervisor/internal/projects"
	"github.com/metafirst/supervisor/internal/rdmp"
	"github.com/metafirst/supervisor/internal/samples"
)

// ProjectRecord is the payload pushed to the catalogue. Only fields the
// project's current RDMP marks public_index are included.
type ProjectRecord struct {
	ProjectID   int64          `json:"project_id"`
	ProjectName string         `json:"project_name"`
	Description string         `json:"description,omitempty"`
	RDMPVersion int            `json:"rdmp_version"`
	Fields      []FieldRecord  `json:"fields"`
	Samples     []SampleRecord `json:"samples"`
}

// FieldRecord describes one publicly indexed metadata field.
type FieldRecord struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

// SampleRecord carries the public field values of one sample.
type SampleRecord struct {
	SampleIdentifier string         `json:"sample_identifier"`
	Values           map[string]any `json:"values"`
}

// Pusher sends records to the catalogue.
type Pusher interface {
	Push(ctx context.Context, record ProjectRecord) error
}

// ProjectSource lists projects eligible for indexing.
type ProjectSource interface {
	List(ctx context.Context) ([]projects.Project, error)
}

// PlanSource provides the current RDMP of a project.
type PlanSource interface {
	GetLatest(ctx context.Context, scope string) (*rdmp.Document, error)
}

// SampleSource provides samples and their field values.
type SampleSource interface {
	List(ctx context.Context, projectID int64) ([]samples.Sample, error)
	FieldValues(ctx context.Context, sampleID int64) ([]samples.FieldValue, error)
}

// Service assembles public records and pushes them, remembering the last
// pushed RDMP version per project in Redis so unchanged projects are
// skipped.
type Service struct {
	projects ProjectSource
	plans    PlanSource
	samples  SampleSource
	pusher   Pusher
	redis    *redis.Client
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(projectSrc ProjectSource, plans PlanSource, sampleSrc SampleSource, pusher Pusher, rdb *redis.Client, logger *slog.Logger) *Service {
	return &Service{projects: projectSrc, plans: plans, samples: sampleSrc, pusher: pusher, redis: rdb, logger: logger}
}

func cursorKey(projectID int64) string {
	return fmt.Sprintf("discovery:last_push:%d", projectID)
}

// PushProject assembles and pushes one project's record. Projects without
// an RDMP or without public fields are skipped. When force is false the
// push is skipped if the current RDMP version was pushed before.
func (s *Service) PushProject(ctx context.Context, p projects.Project, force bool) (bool, error) {
	doc, err := s.plans.GetLatest(ctx, rdmp.ProjectScope(p.ID))
	if err != nil {
		return false, err
	}
	if doc == nil {
		return false, nil
	}
	if !force && s.redis != nil {
		last, err := s.redis.Get(ctx, cursorKey(p.ID)).Result()
		if err == nil && last == strconv.Itoa(doc.VersionInt) {
			return false, nil
		}
	}
	body, err := rdmp.DecodeBody(doc.Body)
	if err != nil {
		return false, err
	}
	public := publicFields(body)
	if len(public) == 0 {
		return false, nil
	}

	record := ProjectRecord{
		ProjectID:   p.ID,
		ProjectName: p.Name,
		Description: p.Description,
		RDMPVersion: doc.VersionInt,
		Fields:      public,
		Samples:     []SampleRecord{},
	}
	publicKeys := make(map[string]struct{}, len(public))
	for _, f := range public {
		publicKeys[f.Key] = struct{}{}
	}

	sampleList, err := s.samples.List(ctx, p.ID)
	if err != nil {
		return false, err
	}
	for _, sample := range sampleList {
		values, err := s.samples.FieldValues(ctx, sample.ID)
		if err != nil {
			return false, err
		}
		rec := SampleRecord{SampleIdentifier: sample.SampleIdentifier, Values: map[string]any{}}
		for _, v := range values {
			if _, ok := publicKeys[v.FieldKey]; ok {
				rec.Values[v.FieldKey] = v.Value
			}
		}
		record.Samples = append(record.Samples, rec)
	}

	if err := s.pusher.Push(ctx, record); err != nil {
		return false, err
	}
	if s.redis != nil {
		if err := s.redis.Set(ctx, cursorKey(p.ID), strconv.Itoa(doc.VersionInt), 0).Err(); err != nil && s.logger != nil {
			s.logger.Warn("store discovery cursor", slog.Int64("project_id", p.ID), slog.Any("error", err))
		}
	}
	return true, nil
}

// pushConcurrency bounds parallel catalogue requests during a sweep.
const pushConcurrency = 4

// PushAll pushes every eligible project and returns the number pushed.
// Failures on single projects are logged and do not stop the sweep.
func (s *Service) PushAll(ctx context.Context, force bool) (int, error) {
	list, err := s.projects.List(ctx)
	if err != nil {
		return 0, err
	}
	var pushed atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(pushConcurrency)
	for _, p := range list {
		p := p
		g.Go(func() error {
			ok, err := s.PushProject(ctx, p, force)
			if err != nil {
				if s.logger != nil {
					s.logger.Error("discovery push", slog.Int64("project_id", p.ID), slog.Any("error", err))
				}
				return nil
			}
			if ok {
				pushed.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(pushed.Load()), err
	}
	return int(pushed.Load()), nil
}

func publicFields(body rdmp.Body) []FieldRecord {
	var out []FieldRecord
	for _, f := range body.Fields {
		if f.Visibility == rdmp.VisibilityPublicIndex {
			out = append(out, FieldRecord{Key: f.Key, Label: f.Label, Type: f.Type})
		}
	}
	return out
}
