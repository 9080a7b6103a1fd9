package packaging

// ModuleStrategy resolves packages through the module table of the loader
// chain. It is only registered for loaders that have one.
type ModuleStrategy struct{}

// Name implements Strategy.
func (ModuleStrategy) Name() string { return "module" }

// Resolve implements Strategy.
func (ModuleStrategy) Resolve(ref ClassRef, l *Loader) (Data, error) {
	if ref.Package == "" {
		return Data{}, ErrUnknown
	}
	mod, ok, err := l.FindModule(ref.Package)
	if err != nil {
		return Data{}, err
	}
	if !ok && ref.Package == "main" {
		mod, ok = l.MainModule()
	}
	if ok {
		return Data{CodeLocation: mod.Path, Version: mod.Version, Exact: true}, nil
	}
	// A package outside every module with a dotless first element can only
	// come from GOROOT.
	if isStdPackage(ref.Package) && l.HasModules() && l.HasStdPackage(ref.Package) {
		return Data{CodeLocation: "std", Version: l.GoVersion(), Exact: true}, nil
	}
	return Data{}, ErrUnknown
}
