package facade

import (
	"fmt"
	"time"

	"github.com/xregistry/bridge/internal/entitystate"
)

func isoTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func xidGroupCollection(e *Engine) string {
	return fmt.Sprintf("/%s", e.adapter.GroupType())
}

func xidGroup(e *Engine) string {
	return fmt.Sprintf("/%s/%s", e.adapter.GroupType(), e.adapter.GroupID())
}

func xidResourceCollection(e *Engine) string {
	return fmt.Sprintf("%s/%s", xidGroup(e), e.adapter.ResourcePlural())
}

func xidResource(e *Engine, id string) string {
	return fmt.Sprintf("%s/%s", xidResourceCollection(e), id)
}

func xidResourceMeta(e *Engine, id string) string {
	return xidResource(e, id) + "/meta"
}

func xidVersions(e *Engine, id string) string {
	return xidResource(e, id) + "/versions"
}

func xidVersion(e *Engine, id, versionID string) string {
	return xidVersions(e, id) + "/" + versionID
}

func xidVersionMeta(e *Engine, id, versionID string) string {
	return xidVersion(e, id, versionID) + "/meta"
}

func selfURL(base, xid string) string {
	return base + xid
}

func stateFields(st entitystate.State) map[string]any {
	return map[string]any{
		"epoch":      st.Epoch,
		"createdat":  isoTime(st.CreatedAt),
		"modifiedat": isoTime(st.ModifiedAt),
	}
}

func (e *Engine) registryDoc(base string) map[string]any {
	xid := "/"
	doc := map[string]any{
		"specversion":     specVersion,
		"registryid":      "xregistry-bridge",
		"xid":             xid,
		"self":            selfURL(base, xid),
		"modelurl":        selfURL(base, "/model"),
		"capabilitiesurl": selfURL(base, "/capabilities"),
	}
	group := e.adapter.GroupType()
	doc[group+"url"] = selfURL(base, xidGroupCollection(e))
	doc[group+"count"] = 1
	return doc
}

func (e *Engine) groupCollectionDoc(base string) map[string]any {
	return map[string]any{
		e.adapter.GroupID(): e.groupDoc(base),
	}
}

func (e *Engine) groupDoc(base string) map[string]any {
	xid := xidGroup(e)
	st := e.states.Get(xid)
	doc := map[string]any{
		e.adapter.GroupType() + "id": e.adapter.GroupID(),
		"xid":                        xid,
		"self":                       selfURL(base, xid),
	}
	resPlural := e.adapter.ResourcePlural()
	doc[resPlural+"url"] = selfURL(base, xidResourceCollection(e))
	for k, v := range stateFields(st) {
		doc[k] = v
	}
	return doc
}

// resourceDoc builds the resource-with-default-version view (spec §4.B
// "Resource" entity). versions must be chronologically sorted oldest-first.
func (e *Engine) resourceDoc(base, id string, pkg *Package, versions []Version, defaultID string) map[string]any {
	xid := xidResource(e, id)
	st := e.states.Get(xid)
	doc := map[string]any{
		"name":                           pkg.Name,
		e.adapter.ResourceSingular() + "id": id,
		"xid":                               xid,
		"self":                              selfURL(base, xid),
		"metaurl":                           selfURL(base, xidResourceMeta(e, id)),
		"versionsurl":                       selfURL(base, xidVersions(e, id)),
		"versionscount":                     len(versions),
	}
	for k, v := range stateFields(st) {
		doc[k] = v
	}
	if pkg.Description != "" {
		doc["description"] = pkg.Description
	}
	if pkg.Homepage != "" {
		doc["homepage"] = pkg.Homepage
	}
	if pkg.License != "" {
		doc["license"] = pkg.License
	}
	if len(pkg.Keywords) > 0 {
		doc["keywords"] = pkg.Keywords
	}
	if pkg.Repository != "" {
		doc["repository"] = pkg.Repository
	}
	for k, v := range pkg.Fields {
		doc[k] = v
	}
	if defaultID != "" {
		doc["versionid"] = defaultID
		doc["isdefault"] = true
	}
	return doc
}

func (e *Engine) resourceMetaDoc(base, id string, versionscount int) map[string]any {
	xid := xidResourceMeta(e, id)
	st := e.states.Get(xidResource(e, id))
	doc := map[string]any{
		"xid":                               xid,
		"self":                              selfURL(base, xid),
		e.adapter.ResourceSingular() + "id": id,
		"versionscount":                     versionscount,
	}
	for k, v := range stateFields(st) {
		doc[k] = v
	}
	return doc
}

func (e *Engine) versionsDoc(base, id string, versions []Version, defaultID string, ancestors map[string]string) map[string]any {
	out := make(map[string]any, len(versions))
	for _, v := range versions {
		out[v.ID] = e.versionDoc(base, id, v, defaultID, ancestors[v.ID])
	}
	return out
}

func (e *Engine) versionDoc(base, id string, v Version, defaultID, ancestor string) map[string]any {
	xid := xidVersion(e, id, v.ID)
	st := e.states.Get(xid)
	doc := map[string]any{
		"versionid":                         v.ID,
		"xid":                               xid,
		"self":                              selfURL(base, xid),
		e.adapter.ResourceSingular() + "id": id,
		"isdefault":                         v.ID == defaultID,
		"ancestor":                          ancestor,
	}
	for k, v2 := range stateFields(st) {
		doc[k] = v2
	}
	if v.License != "" {
		doc["license"] = v.License
	}
	for k, val := range v.Fields {
		doc[k] = val
	}
	return doc
}

func (e *Engine) versionMetaDoc(base, id string, v Version, defaultID, ancestor string) map[string]any {
	xid := xidVersionMeta(e, id, v.ID)
	st := e.states.Get(xidVersion(e, id, v.ID))
	doc := map[string]any{
		"xid":                               xid,
		"self":                              selfURL(base, xid),
		"versionid":                         v.ID,
		e.adapter.ResourceSingular() + "id": id,
		"isdefault":                         v.ID == defaultID,
		"ancestor":                          ancestor,
	}
	for k, val := range stateFields(st) {
		doc[k] = val
	}
	return doc
}

// ancestorsOf returns, for every version in chronological (oldest-first)
// order, the versionid of its immediate predecessor (spec §4.C "Version
// ordering"). The oldest version is its own ancestor.
func ancestorsOf(versions []Version) map[string]string {
	out := make(map[string]string, len(versions))
	prev := ""
	for i, v := range versions {
		if i == 0 {
			out[v.ID] = v.ID
		} else {
			out[v.ID] = prev
		}
		prev = v.ID
	}
	return out
}
