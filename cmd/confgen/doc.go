// Command confgen generates conf descriptors from a small spec file.
//
// A configuration type is described to conf with conf.Describe and typed
// setter closures. Writing those by hand is repetitive and, for unexported
// fields, has to live in the type's own package anyway. confgen writes them
// for you:
//
//   - You write a *.conf.yaml (or JSON) spec next to your types.
//   - You add a //go:generate ... directive in the owner Go file.
//   - confgen generates one Describe<Type>() function per type and, when
//     asked, an init function registering them with conf.MustRegister.
//
// There is no reflection over struct tags and no field poking: every setter
// is an ordinary closure the compiler checks.
//
// Spec format (*.conf.yaml)
//
//	package: appconfig
//	register: true
//	types:
//	  - name: Main
//	    strategy: yaml
//	    nested:
//	      - { field: service, type: Service }
//	    conditional:
//	      - { field: extra, type: Extra }
//	      - { name: audit, field: auditLog, type: "*audit.Config", after: [extra] }
//	    decision: Include
//	    postLoad: Validate
//	  - name: Service
//	    required:
//	      - { field: db, type: DB }
//
// Per type: strategy is a loader strategy id (empty means conf's default
// strategy); required, optional, nested and conditional list injection
// points; decision, preLoad and postLoad name methods on the pointer type
// with the signatures conf.DecideWith, conf.PreLoad and conf.PostLoad expect.
//
// A dep's field is the struct field assigned (it may be unexported and must
// be a pointer), name is the binding name used in errors and by after
// (defaults to field), and type is the dependency type. Package-qualified
// types must be importable under that qualifier from the owner file.
//
// The spec is validated before generation with the same rules conf applies
// at extraction: unique names, prerequisites that name other conditional
// deps, and a decision method whenever conditional deps exist.
//
// Typical go:generate usage
//
//	//go:generate go run ../../cmd/confgen --spec ./appconfig.conf.yaml --out ./appconfig.gen.go
//
// Flags
//
//	--spec     path to the spec file (required)
//	--out      generated file path (required)
//	--dry-run  print the generated source to stdout instead of writing --out
//
// Exit codes are 0 on success, 1 on a generation failure and 2 on usage errors.
package main
