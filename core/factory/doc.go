// Package factory provides a small generic registry used to instantiate
// pluggable modules (metrics sinks, decision log stores) from configuration.
// A module is described by a type string and a map of raw settings; the
// registered factory decodes the settings with Decode and returns the
// concrete implementation.
//
//	reg := factory.NewRegistry[io.Reader]()
//	reg.Register("file", func(conf map[string]any) (io.Reader, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return os.Open(c.Path)
//	})
//	r, err := reg.Create(factory.ModuleConfig{Type: "file", Conf: map[string]any{"path": "foo"}})
package factory
