package conf_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sghaida/confwire/conf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extract(t *testing.T, ds ...*conf.Descriptor) (*conf.Metadata, error) {
	t.Helper()
	require.NotEmpty(t, ds)
	return conf.NewExtractor(conf.NewTable().MustRegister(ds...)).Extract(ds[0].Type())
}

func setMainExtra(m *Main, e *Extra) { m.extra = e }
func setMainAlpha(m *Main, a *Alpha) { m.alpha = a }
func setMainBeta(m *Main, b *Beta) { m.beta = b }
func approveAll(*Main, conf.Type) bool {
	return true
}

//
// -----------------------------------------------------------------------------
// Successful extraction
// -----------------------------------------------------------------------------

// TestExtract_CollectsEveryBindingKind verifies metadata mirrors the
// descriptor in declaration order.
func TestExtract_CollectsEveryBindingKind(t *testing.T) {
	t.Parallel()

	md, err := extract(t, conf.Describe[Main](
		conf.ReadWith("yaml"),
		conf.Requires("db", func(m *Main, db *DB) { m.db = db }),
		conf.Optionally("audit", func(m *Main, a *Audit) { m.audit = a }),
		conf.Nests("service", func(m *Main, s *Service) { m.service = s }),
		conf.When("beta", setMainBeta, "alpha"),
		conf.When("alpha", setMainAlpha),
		conf.DecideWith(approveAll),
		conf.PostLoad(func(*Main) error { return nil }),
	))
	require.NoError(t, err)

	assert.Equal(t, mainT, md.Type())
	assert.Equal(t, conf.StrategyID("yaml"), md.Strategy())
	assert.Equal(t, []string{"db:conf_test.DB"}, bindingFields(md.Required()))
	assert.Equal(t, []string{"audit:conf_test.Audit"}, bindingFields(md.Optional()))
	assert.Equal(t, []string{"service:conf_test.Service"}, bindingFields(md.Nested()))

	cond := md.Conditional()
	require.Len(t, cond, 2)
	assert.Equal(t, "beta", cond[0].Field)
	assert.Equal(t, []string{"alpha"}, cond[0].After)
	assert.Equal(t, "alpha", cond[1].Field)
	assert.Empty(t, cond[1].After)

	assert.True(t, md.HasDecision())
	assert.False(t, md.HasPreLoad())
	assert.True(t, md.HasPostLoad())
}

func TestExtract_DefaultStrategy(t *testing.T) {
	t.Parallel()

	md, err := extract(t, conf.Describe[Plain]())
	require.NoError(t, err)
	assert.Equal(t, conf.DefaultStrategy, md.Strategy())
	assert.False(t, md.HasDecision())
	assert.True(t, md.Decide(&Plain{}, dbT), "no callback approves everything")
}

// TestExtract_IsPure verifies two extractions are value-equal and independent.
func TestExtract_IsPure(t *testing.T) {
	t.Parallel()

	table := conf.NewTable().MustRegister(conf.Describe[Main](
		conf.Requires("db", func(m *Main, db *DB) { m.db = db }),
		conf.When("extra", setMainExtra),
		conf.DecideWith(approveAll),
	))
	ex := conf.NewExtractor(table)

	a, err := ex.Extract(mainT)
	require.NoError(t, err)
	b, err := ex.Extract(mainT)
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, bindingFields(a.Required()), bindingFields(b.Required()))
	assert.Equal(t, a.Conditional()[0].After, b.Conditional()[0].After)
	assert.Equal(t, a.Strategy(), b.Strategy())
}

// TestMetadata_AccessorsReturnCopies verifies callers cannot mutate metadata.
func TestMetadata_AccessorsReturnCopies(t *testing.T) {
	t.Parallel()

	md, err := extract(t, conf.Describe[Main](
		conf.Requires("db", func(m *Main, db *DB) { m.db = db }),
		conf.When("beta", setMainBeta, "alpha"),
		conf.When("alpha", setMainAlpha),
		conf.DecideWith(approveAll),
	))
	require.NoError(t, err)

	req := md.Required()
	req[0].Field = "mutated"
	cond := md.Conditional()
	cond[0].After[0] = "mutated"

	assert.Equal(t, "db", md.Required()[0].Field)
	assert.Equal(t, []string{"alpha"}, md.Conditional()[0].After)
}

// TestExtract_ConditionalNeedsDecision verifies conditionals require a
// decision callback and that adding one fixes extraction.
func TestExtract_ConditionalNeedsDecision(t *testing.T) {
	t.Parallel()

	_, err := extract(t, conf.Describe[Main](conf.When("extra", setMainExtra)))
	require.Error(t, err)
	assert.ErrorIs(t, err, conf.ErrInvalidMetadata)

	var de conf.InvalidDecisionCallbackError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, mainT, de.Type)
	assert.Equal(t, 0, de.Count)

	md, err := extract(t, conf.Describe[Main](
		conf.When("extra", setMainExtra),
		conf.DecideWith(approveAll),
	))
	require.NoError(t, err)
	assert.True(t, md.HasDecision())
}

//
// -----------------------------------------------------------------------------
// Validation failures
// -----------------------------------------------------------------------------

// TestExtract_ValidationErrors covers every malformed descriptor.
func TestExtract_ValidationErrors(t *testing.T) {
	t.Parallel()

	hook := func(*Main) error { return nil }

	cases := []struct {
		name  string
		desc  *conf.Descriptor
		check func(t *testing.T, err error)
	}{
		{
			name: "two decision callbacks",
			desc: conf.Describe[Main](
				conf.When("extra", setMainExtra),
				conf.DecideWith(approveAll),
				conf.DecideWith(approveAll),
			),
			check: func(t *testing.T, err error) {
				var e conf.InvalidDecisionCallbackError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, 2, e.Count)
			},
		},
		{
			name: "two decision callbacks without conditionals",
			desc: conf.Describe[Main](conf.DecideWith(approveAll), conf.DecideWith(approveAll)),
			check: func(t *testing.T, err error) {
				var e conf.InvalidDecisionCallbackError
				require.ErrorAs(t, err, &e)
			},
		},
		{
			name: "nil decision callback",
			desc: conf.Describe[Main](conf.DecideWith[Main](nil)),
			check: func(t *testing.T, err error) {
				var e conf.InvalidDecisionCallbackError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "nil callback", e.Reason)
			},
		},
		{
			name: "decision callback of another type",
			desc: conf.Describe[Main](conf.DecideWith(func(*Service, conf.Type) bool { return true })),
			check: func(t *testing.T, err error) {
				var e conf.InvalidDecisionCallbackError
				require.ErrorAs(t, err, &e)
				assert.Contains(t, e.Reason, "conf_test.Service")
			},
		},
		{
			name: "prerequisite is itself",
			desc: conf.Describe[Main](
				conf.When("extra", setMainExtra, "extra"),
				conf.DecideWith(approveAll),
			),
			check: func(t *testing.T, err error) {
				var e conf.InvalidConditionalDependencyError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "extra", e.Field)
				assert.Equal(t, "extra", e.Prerequisite)
				assert.Equal(t, "refers to itself", e.Reason)
			},
		},
		{
			name: "prerequisite is not conditional",
			desc: conf.Describe[Main](
				conf.Requires("db", func(m *Main, db *DB) { m.db = db }),
				conf.When("extra", setMainExtra, "db"),
				conf.DecideWith(approveAll),
			),
			check: func(t *testing.T, err error) {
				var e conf.InvalidConditionalDependencyError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "db", e.Prerequisite)
				assert.Equal(t, "is not a conditional configuration", e.Reason)
			},
		},
		{
			name: "prerequisite is unknown",
			desc: conf.Describe[Main](
				conf.When("extra", setMainExtra, "ghost"),
				conf.DecideWith(approveAll),
			),
			check: func(t *testing.T, err error) {
				var e conf.InvalidConditionalDependencyError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "is not a field of the type", e.Reason)
			},
		},
		{
			name: "required and optional share a field",
			desc: conf.Describe[Main](
				conf.Requires("db", func(m *Main, db *DB) { m.db = db }),
				conf.Optionally("db", func(m *Main, db *DB) { m.db = db }),
			),
			check: func(t *testing.T, err error) {
				var e conf.DuplicateFieldError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, conf.DuplicateFieldError{Type: mainT, Field: "db"}, e)
			},
		},
		{
			name: "nested and conditional share a field",
			desc: conf.Describe[Main](
				conf.Nests("extra", setMainExtra),
				conf.When("extra", setMainExtra),
				conf.DecideWith(approveAll),
			),
			check: func(t *testing.T, err error) {
				var e conf.DuplicateFieldError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "extra", e.Field)
			},
		},
		{
			name: "empty field name",
			desc: conf.Describe[Main](conf.Requires("", func(m *Main, db *DB) { m.db = db })),
			check: func(t *testing.T, err error) {
				var e conf.InvalidBindingError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "empty field name", e.Reason)
			},
		},
		{
			name: "nil setter",
			desc: conf.Describe[Main](conf.Nests[Main, Service]("service", nil)),
			check: func(t *testing.T, err error) {
				var e conf.InvalidBindingError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "service", e.Field)
				assert.Equal(t, "nil setter", e.Reason)
			},
		},
		{
			name: "setter of another type",
			desc: conf.Describe[Main](conf.Requires("db", func(s *Service, db *DB) { s.db = db })),
			check: func(t *testing.T, err error) {
				var e conf.InvalidBindingError
				require.ErrorAs(t, err, &e)
				assert.Contains(t, e.Reason, "conf_test.Service")
			},
		},
		{
			name: "pointer container in setter",
			desc: conf.Describe[*Main](conf.Requires("db", func(m **Main, db *DB) { (*m).db = db })),
			check: func(t *testing.T, err error) {
				var e conf.InvalidBindingError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, mainT, e.Type)
				assert.Equal(t, "pointer type parameter *conf_test.Main", e.Reason)
			},
		},
		{
			name: "pointer dependency in setter",
			desc: conf.Describe[Main](conf.Nests("service", func(m *Main, s **Service) { m.service = *s })),
			check: func(t *testing.T, err error) {
				var e conf.InvalidBindingError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "service", e.Field)
				assert.Equal(t, "pointer type parameter *conf_test.Service", e.Reason)
			},
		},
		{
			name: "pointer container in decision callback",
			desc: conf.Describe[Main](conf.DecideWith(func(**Main, conf.Type) bool { return true })),
			check: func(t *testing.T, err error) {
				var e conf.InvalidDecisionCallbackError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "pointer type parameter *conf_test.Main", e.Reason)
			},
		},
		{
			name: "pointer container in hook",
			desc: conf.Describe[Main](conf.PostLoad(func(**Main) error { return nil })),
			check: func(t *testing.T, err error) {
				var e conf.InvalidLifecycleHookError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, conf.PostLoadPhase, e.Phase)
				assert.Equal(t, "pointer type parameter *conf_test.Main", e.Reason)
			},
		},
		{
			name: "two post-load hooks",
			desc: conf.Describe[Main](conf.PostLoad(hook), conf.PostLoad(hook)),
			check: func(t *testing.T, err error) {
				var e conf.InvalidLifecycleHookError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, conf.PostLoadPhase, e.Phase)
				assert.Equal(t, 2, e.Count)
			},
		},
		{
			name: "nil pre-load hook",
			desc: conf.Describe[Main](conf.PreLoad[Main](nil)),
			check: func(t *testing.T, err error) {
				var e conf.InvalidLifecycleHookError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, conf.PreLoadPhase, e.Phase)
			},
		},
		{
			name: "hook of another type",
			desc: conf.Describe[Main](conf.PreLoad(func(*Service) error { return nil })),
			check: func(t *testing.T, err error) {
				var e conf.InvalidLifecycleHookError
				require.ErrorAs(t, err, &e)
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			md, err := extract(t, tc.desc)
			require.Error(t, err)
			assert.Nil(t, md)
			assert.ErrorIs(t, err, conf.ErrInvalidMetadata)
			tc.check(t, err)
		})
	}
}

// TestExtract_HooksRejectedBeforeAnyRuns verifies a duplicated post-load hook
// fails the load without running either hook.
func TestExtract_HooksRejectedBeforeAnyRuns(t *testing.T) {
	t.Parallel()

	var ran atomic.Int32
	hook := func(*Plain) error { ran.Add(1); return nil }
	l, _ := newLoader(t, nil, conf.Describe[Plain](conf.PreLoad(hook), conf.PostLoad(hook), conf.PostLoad(hook)))

	_, err := conf.Load[Plain](l)
	assert.ErrorIs(t, err, conf.ErrInvalidMetadata)
	assert.Equal(t, int32(0), ran.Load())
}

func TestExtract_MissingDescriptor(t *testing.T) {
	t.Parallel()

	_, err := conf.NewExtractor(conf.NewTable()).Extract(plainT)
	assert.Equal(t, conf.MissingDescriptorError{Type: plainT}, err)

	_, err = conf.NewExtractor(nil).Extract(plainT)
	assert.ErrorIs(t, err, conf.ErrInvalidMetadata)
}

//
// -----------------------------------------------------------------------------
// CachingExtractor
// -----------------------------------------------------------------------------

type countingExtractor struct {
	inner conf.Extractor
	calls atomic.Int32
}

func (c *countingExtractor) Extract(t conf.Type) (*conf.Metadata, error) {
	c.calls.Add(1)
	return c.inner.Extract(t)
}

func TestCachingExtractor_Memoizes(t *testing.T) {
	t.Parallel()

	inner := &countingExtractor{inner: conf.NewExtractor(conf.NewTable().MustRegister(conf.Describe[Plain]()))}
	c := conf.NewCachingExtractor(inner)

	a, err := c.Extract(plainT)
	require.NoError(t, err)
	b, err := c.Extract(plainT)
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.True(t, c.Cached(plainT))

	c.Forget(plainT)
	assert.False(t, c.Cached(plainT))
	_, err = c.Extract(plainT)
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())

	c.Purge()
	assert.False(t, c.Cached(plainT))
}

// TestCachingExtractor_ErrorsNotCached verifies a descriptor registered after
// a failed extraction is picked up.
func TestCachingExtractor_ErrorsNotCached(t *testing.T) {
	t.Parallel()

	table := conf.NewTable()
	c := conf.NewCachingExtractor(conf.NewExtractor(table))

	_, err := c.Extract(plainT)
	require.Error(t, err)
	assert.False(t, c.Cached(plainT))

	require.NoError(t, table.Register(conf.Describe[Plain]()))
	md, err := c.Extract(plainT)
	require.NoError(t, err)
	assert.Equal(t, plainT, md.Type())
}

func TestCachingExtractor_ConcurrentMissesExtractOnce(t *testing.T) {
	t.Parallel()

	inner := &countingExtractor{inner: conf.NewExtractor(conf.NewTable().MustRegister(conf.Describe[Plain]()))}
	c := conf.NewCachingExtractor(inner)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Extract(plainT)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), inner.calls.Load())
}

// TestLoader_UsesMemoizedMetadata verifies the default loader extractor only
// extracts each type once across loads.
func TestLoader_UsesMemoizedMetadata(t *testing.T) {
	t.Parallel()

	inner := &countingExtractor{inner: conf.NewExtractor(conf.NewTable().MustRegister(conf.Describe[Plain]()))}
	l := conf.NewLoader(conf.WithExtractor(conf.NewCachingExtractor(inner)))

	for i := 0; i < 3; i++ {
		_, err := conf.Load[Plain](l)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), inner.calls.Load())

	_, err := conf.NewLoader(conf.WithExtractor(inner)).Load(dbT)
	assert.True(t, errors.Is(err, conf.ErrInvalidMetadata))
}
