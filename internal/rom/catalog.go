package rom

import (
	"fmt"

	"os4/internal/keys"
	"os4/internal/logging"
	"os4/internal/secondary"
	"os4/internal/system"
)

// FunctionCatalog is the catalog number of the secondary function list.
const FunctionCatalog = 1

// CatalogItem is one line of a catalog.
type CatalogItem struct {
	Name string
	// Ref is set for items that can be run.
	Ref *secondary.Ref
}

// Catalog is the transient catalog browser.
type Catalog struct {
	number int
	items  []CatalogItem
	pos    int
}

// Items returns the catalog being browsed.
func (c *Catalog) Items() []CatalogItem { return c.items }

// Pos returns the current line.
func (c *Catalog) Pos() int { return c.pos }

// Number returns the catalog number being browsed.
func (c *Catalog) Number() int { return c.number }

// FunctionItems lists every registered secondary function in ROM order.
func FunctionItems(reg *secondary.Registry) []CatalogItem {
	var items []CatalogItem
	for _, id := range reg.ROMs() {
		t, _ := reg.Table(id)
		for i, fn := range t.Functions {
			ref := secondary.Ref{ROM: id, Index: i}
			items = append(items, CatalogItem{Name: fn.Name, Ref: &ref})
		}
	}
	return items
}

// Lookup finds catalog n: the function catalog, or whatever an extension
// answers for n.
func Lookup(s *system.System, n int) ([]CatalogItem, error) {
	if n == FunctionCatalog {
		return FunctionItems(s.Secondaries()), nil
	}
	reply, ok := s.Catalog(n)
	if !ok {
		return nil, fmt.Errorf("catalog %d: no extension answered", n)
	}
	names, ok := reply.Data.([]string)
	if !ok {
		return nil, fmt.Errorf("catalog %d: %s answered %T", n, reply.Shell, reply.Data)
	}
	items := make([]CatalogItem, len(names))
	for i, name := range names {
		items[i] = CatalogItem{Name: name}
	}
	return items, nil
}

// open starts browsing catalog n.
func (c *Catalog) open(s *system.System, n int) error {
	items, err := Lookup(s, n)
	if err != nil {
		logging.ShellDebug("%v", err)
		return s.ErrorExit(system.MsgNonexist)
	}
	if len(items) == 0 {
		return s.ErrorExit("CAT EMPTY")
	}
	c.number = n
	c.items = items
	c.pos = 0
	return s.ActivateShell(CatalogShell)
}

func (c *Catalog) next(*system.System, keys.Code) error {
	if c.pos < len(c.items)-1 {
		c.pos++
	}
	return nil
}

func (c *Catalog) prev(*system.System, keys.Code) error {
	if c.pos > 0 {
		c.pos--
	}
	return nil
}

// run leaves the catalog and executes the current item.
func (c *Catalog) run(s *system.System, _ keys.Code) error {
	if c.pos >= len(c.items) {
		if err := s.ExitShell(CatalogShell); err != nil {
			return err
		}
		return s.ErrorExit(system.MsgNonexist)
	}
	item := c.items[c.pos]
	if err := s.ExitShell(CatalogShell); err != nil {
		return err
	}
	if item.Ref == nil {
		return s.ErrorExit(system.MsgNonexist)
	}
	return s.InvokeSecondary(*item.Ref)
}

func (c *Catalog) exit(s *system.System, _ keys.Code) error {
	return s.ExitShell(CatalogShell)
}

func (c *Catalog) reset() {
	c.items = nil
	c.pos = 0
}

// Display shows the current line.
func (c *Catalog) Display() string {
	if len(c.items) == 0 {
		return ""
	}
	return fmt.Sprintf("%02d %s", c.pos, c.items[c.pos].Name)
}

// bufferCatalog answers CAT 4 with the buffers in memory.
func bufferCatalog(sys **system.System) func(data interface{}) (interface{}, bool) {
	return func(data interface{}) (interface{}, bool) {
		n, ok := data.(int)
		if !ok || n != BufferCatalog || *sys == nil {
			return nil, false
		}
		mem := (*sys).Memory()
		var names []string
		for _, id := range mem.IDs() {
			size, _ := mem.Size(id)
			names = append(names, fmt.Sprintf("BUF %02d SIZE %d", id, size))
		}
		for _, id := range mem.HostedIDs() {
			size, _ := mem.FindHosted(id)
			names = append(names, fmt.Sprintf("HOSTED %02d SIZE %d", id, size))
		}
		return names, true
	}
}

// BufferCatalog is the catalog number the buffer extension answers.
const BufferCatalog = 4
