package curriculum

import "strings"

// DefaultCategory groups topics that carry no "Category: " prefix.
const DefaultCategory = "Generale"

// Topic is one unit of exam material. Name is the primary key everywhere;
// Category and Subtopic are derived from the optional "Category: Subtopic" form.
type Topic struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Subtopic string `json:"subtopic"`
}

// ParseTopic splits a topic name on its first colon.
func ParseTopic(name string) Topic {
	name = strings.TrimSpace(name)
	cat, sub, ok := strings.Cut(name, ":")
	if !ok || strings.TrimSpace(cat) == "" {
		return Topic{Name: name, Category: DefaultCategory, Subtopic: name}
	}
	return Topic{
		Name:     name,
		Category: strings.TrimSpace(cat),
		Subtopic: strings.TrimSpace(sub),
	}
}

// Group is a category with its topics in catalog order.
type Group struct {
	Category string  `json:"category"`
	Topics   []Topic `json:"topics"`
}

// Catalog is the immutable, ordered list of exam topics.
type Catalog struct {
	topics []Topic
	index  map[string]int
}

// NewCatalog builds a catalog from topic names, keeping the first occurrence
// of duplicates and dropping blank names.
func NewCatalog(names []string) *Catalog {
	c := &Catalog{index: make(map[string]int, len(names))}
	for _, n := range names {
		t := ParseTopic(n)
		if t.Name == "" {
			continue
		}
		if _, dup := c.index[t.Name]; dup {
			continue
		}
		c.index[t.Name] = len(c.topics)
		c.topics = append(c.topics, t)
	}
	return c
}

// Len returns the number of topics.
func (c *Catalog) Len() int {
	return len(c.topics)
}

// Topics returns a copy of the topics in catalog order.
func (c *Catalog) Topics() []Topic {
	return append([]Topic(nil), c.topics...)
}

// Names returns the topic names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.topics))
	for i, t := range c.topics {
		names[i] = t.Name
	}
	return names
}

// Contains reports whether name is a catalog topic.
func (c *Catalog) Contains(name string) bool {
	_, ok := c.index[name]
	return ok
}

// Groups returns topics grouped by category, categories in order of first
// appearance.
func (c *Catalog) Groups() []Group {
	var groups []Group
	pos := map[string]int{}
	for _, t := range c.topics {
		i, ok := pos[t.Category]
		if !ok {
			i = len(groups)
			pos[t.Category] = i
			groups = append(groups, Group{Category: t.Category})
		}
		groups[i].Topics = append(groups[i].Topics, t)
	}
	return groups
}
