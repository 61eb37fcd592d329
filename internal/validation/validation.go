// Package validation содержит функции валидации входных данных.
package validation

import "github.com/mmeshcher/foodhall-system/internal/model"

// ValidateOrder проверяет корректность заказа: заказ не пуст, каждая позиция
// ссылается на товар и запрашивает положительное количество.
func ValidateOrder(order model.Order) bool {
	if len(order) == 0 {
		return false
	}
	for _, line := range order {
		if line.GoodsID == "" || line.Count <= 0 {
			return false
		}
	}
	return true
}

// ValidatePaidInput проверяет вводимые кассиром данные об оплате.
func ValidatePaidInput(paidAmount int64, paidMeans string) bool {
	return paidAmount > 0 && paidMeans != ""
}
