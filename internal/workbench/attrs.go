package workbench

import (
	"github.com/oceanobs/objstore/internal/commitstore"
	"github.com/oceanobs/objstore/internal/element"
)

// Object-root type tags the attribute extraction switches on, grounded
// in the original datastore's ASSOCIATION_TYPE/RESOURCE_TYPE/
// TERMINOLOGY_TYPE constants.
const (
	AssociationType = "association"
	ResourceType    = "resource"
	TerminologyType = "terminology"
)

// attributesForCommit computes the indexed attribute map for a newly
// observed commit, following spec §4.5.2 step 7: the object root's
// type tag decides which of the fixed columns get populated, and
// repository_key is always set.
func attributesForCommit(repositoryKey string, objectRoot *element.Element) map[string]string {
	attrs := map[string]string{"repository_key": repositoryKey}

	switch objectRoot.Type {
	case AssociationType:
		if subj, ok := idRefFields(objectRoot.Payload, "subject"); ok {
			attrs["subject_key"] = subj[0]
			attrs["subject_branch"] = subj[1]
			attrs["subject_commit"] = subj[2]
		}
		if pred, ok := idRefFields(objectRoot.Payload, "predicate"); ok {
			attrs["predicate_key"] = pred[0]
			attrs["predicate_branch"] = pred[1]
			attrs["predicate_commit"] = pred[2]
		}
		if obj, ok := idRefFields(objectRoot.Payload, "object"); ok {
			attrs["object_key"] = obj[0]
			attrs["object_branch"] = obj[1]
			attrs["object_commit"] = obj[2]
		}
	case ResourceType:
		if v, ok := stringField(objectRoot.Payload, "resource_type"); ok {
			attrs["resource_object_type"] = v
		}
		if v, ok := stringField(objectRoot.Payload, "lifecycle_state"); ok {
			attrs["resource_life_cycle_state"] = v
		}
	case TerminologyType:
		if v, ok := stringField(objectRoot.Payload, "keyword"); ok {
			attrs["keyword"] = v
		}
	}

	return attrs
}

// idRefFields reads a nested {key, branch, commit} triple out of a
// payload map under fieldName. predicate is special-cased: the
// original datastore stores it as a bare key string, not a triple, so
// only key is populated and branch/commit come back empty.
func idRefFields(payload map[string]any, fieldName string) ([3]string, bool) {
	if fieldName == "predicate" {
		if v, ok := payload[fieldName].(string); ok {
			return [3]string{v, "", ""}, true
		}
	}
	nested, ok := payload[fieldName].(map[string]any)
	if !ok {
		return [3]string{}, false
	}
	var out [3]string
	out[0], _ = nested["key"].(string)
	out[1], _ = nested["branch"].(string)
	out[2], _ = nested["commit"].(string)
	return out, true
}

func stringField(payload map[string]any, name string) (string, bool) {
	v, ok := payload[name].(string)
	return v, ok
}

// commitstoreAttributes is a small adapter so callers needn't import
// commitstore directly just to build a Predicate slice for a
// single-column equality query.
func eqPredicate(column, value string) commitstore.Predicate {
	return commitstore.Predicate{Column: column, Value: value, Op: commitstore.EQ}
}
