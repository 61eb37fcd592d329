package repository

import (
	"testing"

	"github.com/mmeshcher/foodhall-system/internal/apperr"
	"github.com/mmeshcher/foodhall-system/internal/model"
)

func TestGroupOrderByShop(t *testing.T) {
	shops := map[string]string{
		"g1": "shopA",
		"g2": "shopB",
		"g3": "shopA",
	}

	t.Run("two shops, one group per shop with only its lines", func(t *testing.T) {
		order := model.Order{
			{GoodsID: "g1", Count: 1},
			{GoodsID: "g2", Count: 2},
			{GoodsID: "g3", Count: 3},
		}

		groups, err := groupOrderByShop(order, shops)
		if err != nil {
			t.Fatalf("groupOrderByShop error: %v", err)
		}

		if len(groups) != 2 {
			t.Fatalf("groups = %d, want 2", len(groups))
		}
		if groups[0].shopID != "shopA" || groups[1].shopID != "shopB" {
			t.Fatalf("shop order = %s, %s, want shopA, shopB (first-seen order)", groups[0].shopID, groups[1].shopID)
		}

		if len(groups[0].lines) != 2 || groups[0].lines[0].GoodsID != "g1" || groups[0].lines[1].GoodsID != "g3" {
			t.Fatalf("shopA lines = %+v, want g1 and g3", groups[0].lines)
		}
		if len(groups[1].lines) != 1 || groups[1].lines[0].GoodsID != "g2" {
			t.Fatalf("shopB lines = %+v, want only g2", groups[1].lines)
		}
	})

	t.Run("single shop keeps one group", func(t *testing.T) {
		order := model.Order{
			{GoodsID: "g1", Count: 1},
			{GoodsID: "g3", Count: 1},
		}

		groups, err := groupOrderByShop(order, shops)
		if err != nil {
			t.Fatalf("groupOrderByShop error: %v", err)
		}
		if len(groups) != 1 || groups[0].shopID != "shopA" || len(groups[0].lines) != 2 {
			t.Fatalf("groups = %+v, want one shopA group with two lines", groups)
		}
	})

	t.Run("first-seen order follows the order lines, not the map", func(t *testing.T) {
		order := model.Order{
			{GoodsID: "g2", Count: 1},
			{GoodsID: "g1", Count: 1},
		}

		groups, err := groupOrderByShop(order, shops)
		if err != nil {
			t.Fatalf("groupOrderByShop error: %v", err)
		}
		if groups[0].shopID != "shopB" || groups[1].shopID != "shopA" {
			t.Fatalf("shop order = %s, %s, want shopB, shopA", groups[0].shopID, groups[1].shopID)
		}
	})

	t.Run("unresolved good aborts ticket issue", func(t *testing.T) {
		order := model.Order{
			{GoodsID: "g1", Count: 1},
			{GoodsID: "g-deleted", Count: 1},
		}

		_, err := groupOrderByShop(order, shops)
		if apperr.CodeOf(err) != apperr.CodeTicketIssueFailed {
			t.Fatalf("code = %s, want %s", apperr.CodeOf(err), apperr.CodeTicketIssueFailed)
		}
	})
}
